package fonts

import (
	"fmt"

	"github.com/wudi/pdfarchive/ir/raw"
)

// CollectFonts walks every location a font dictionary can be referenced
// from and returns each distinct font once, in traversal order:
//
//   - page /Resources /Font entries
//   - form XObjects reached through /Resources /XObject (recursively)
//   - tiling patterns reached through /Resources /Pattern
//   - Type3 font /Resources (fonts used inside CharProcs)
//   - annotation appearance streams (/AP /N, /R, /D, including sub-state
//     dictionaries)
//   - the interactive form default resources (/AcroForm /DR)
//
// Indirect font dictionaries are deduplicated by object reference. Fonts
// written directly into a resource dictionary have no reference identity;
// they are assigned synthetic negative object numbers keyed by
// BaseFont/FirstChar/LastChar so that repeated occurrences of the same
// inline font collapse to one entry.
//
// Shared resource dictionaries and recursive form XObjects are guarded by
// reference-keyed visited sets; direct (non-indirect) nodes cannot form
// cycles because the object graph below them is a tree.
func CollectFonts(doc *raw.Document) []FontRef {
	t := &traverser{
		doc:          doc,
		seenFonts:    make(map[raw.ObjectRef]bool),
		directFonts:  make(map[string]raw.ObjectRef),
		nextSynthNum: -1,
	}

	for i, page := range doc.Pages() {
		t.page = i
		t.visitResources(t.resourcesOf(page), nil)
		t.visitAnnotations(page)
	}

	t.page = -1
	if catalog, ok := doc.Catalog(); ok {
		if acro, ok := doc.DictGetDict(catalog, "AcroForm"); ok {
			if dr, ok := doc.DictGetDict(acro, "DR"); ok {
				t.visitResources(dr, nil)
			}
			t.visitFieldAppearances(acro)
		}
	}

	return t.fonts
}

type traverser struct {
	doc   *raw.Document
	page  int
	fonts []FontRef

	seenFonts    map[raw.ObjectRef]bool
	directFonts  map[string]raw.ObjectRef
	nextSynthNum int
}

// resourcesOf returns a page's resource dictionary, walking /Parent for
// inherited resources.
func (t *traverser) resourcesOf(page raw.Dictionary) raw.Dictionary {
	node := page
	for depth := 0; node != nil && depth < 64; depth++ {
		if res, ok := t.doc.DictGetDict(node, "Resources"); ok {
			return res
		}
		parent, ok := t.doc.DictGetDict(node, "Parent")
		if !ok {
			return nil
		}
		node = parent
	}
	return nil
}

// visitResources records fonts in res and recurses into nested content
// containers. visitedRes tracks indirect resource dictionaries already
// walked on this path; it is shared downward so that mutually recursive
// form XObjects terminate.
func (t *traverser) visitResources(res raw.Dictionary, visitedRes map[raw.ObjectRef]bool) {
	if res == nil {
		return
	}
	if visitedRes == nil {
		visitedRes = make(map[raw.ObjectRef]bool)
	}

	if fontDict, ok := t.doc.DictGetDict(res, "Font"); ok {
		for _, key := range fontDict.Keys() {
			fv, _ := fontDict.Get(key)
			t.addFont(fv)
		}
	}

	if xobjs, ok := t.doc.DictGetDict(res, "XObject"); ok {
		for _, key := range xobjs.Keys() {
			xv, _ := xobjs.Get(key)
			t.visitContainer(xv, visitedRes)
		}
	}

	if patterns, ok := t.doc.DictGetDict(res, "Pattern"); ok {
		for _, key := range patterns.Keys() {
			pv, _ := patterns.Get(key)
			t.visitContainer(pv, visitedRes)
		}
	}
}

// visitContainer recurses into a form XObject or tiling pattern stream,
// walking its /Resources. Image XObjects and shading patterns carry no
// fonts and are skipped.
func (t *traverser) visitContainer(obj raw.Object, visitedRes map[raw.ObjectRef]bool) {
	if visitedRes == nil {
		visitedRes = make(map[raw.ObjectRef]bool)
	}
	if ref, ok := raw.RefOf(obj); ok {
		if visitedRes[ref] {
			return
		}
		visitedRes[ref] = true
	}
	st, ok := t.doc.ResolveStream(obj)
	if !ok {
		return
	}
	dict := st.Dictionary()
	if sub, _ := t.doc.DictGetName(dict, "Subtype"); sub == "Image" {
		return
	}
	if pt, ok := t.doc.DictGetInt(dict, "PatternType"); ok && pt != 1 {
		return
	}
	if res, ok := t.doc.DictGetDict(dict, "Resources"); ok {
		t.visitResources(res, visitedRes)
	}
}

func (t *traverser) visitAnnotations(page raw.Dictionary) {
	annots, ok := t.doc.DictGetArray(page, "Annots")
	if !ok {
		return
	}
	for i := 0; i < annots.Len(); i++ {
		annot, ok := t.doc.ArrayGet(annots, i).(raw.Dictionary)
		if !ok {
			continue
		}
		t.visitAppearanceDict(annot)
	}
}

// visitAppearanceDict walks an annotation's /AP entry. Each of N, R and D
// may be an appearance stream directly or a dictionary of named sub-state
// streams (e.g. /Off, /On for checkboxes).
func (t *traverser) visitAppearanceDict(annot raw.Dictionary) {
	ap, ok := t.doc.DictGetDict(annot, "AP")
	if !ok {
		return
	}
	for _, state := range []string{"N", "R", "D"} {
		entryRaw := raw.DictGetRaw(ap, state)
		switch v := t.doc.Resolve(entryRaw).(type) {
		case raw.Stream:
			t.visitContainer(entryRaw, nil)
		case raw.Dictionary:
			for _, key := range v.Keys() {
				sub, _ := v.Get(key)
				t.visitContainer(sub, nil)
			}
		}
	}
}

// visitFieldAppearances walks AcroForm field widgets, which may carry
// appearance streams not reachable from any page's /Annots.
func (t *traverser) visitFieldAppearances(acro raw.Dictionary) {
	fields, ok := t.doc.DictGetArray(acro, "Fields")
	if !ok {
		return
	}
	visited := make(map[raw.ObjectRef]bool)
	var walk func(obj raw.Object, depth int)
	walk = func(obj raw.Object, depth int) {
		if depth > 64 {
			return
		}
		if ref, ok := raw.RefOf(obj); ok {
			if visited[ref] {
				return
			}
			visited[ref] = true
		}
		field, ok := t.doc.ResolveDict(obj)
		if !ok {
			return
		}
		t.visitAppearanceDict(field)
		if kids, ok := t.doc.DictGetArray(field, "Kids"); ok {
			for i := 0; i < kids.Len(); i++ {
				kid, _ := kids.Get(i)
				walk(kid, depth+1)
			}
		}
	}
	for i := 0; i < fields.Len(); i++ {
		f, _ := fields.Get(i)
		walk(f, 0)
	}
}

// addFont records one font occurrence, deduplicating and recursing into
// Type3 resources and Type0 descendants.
func (t *traverser) addFont(obj raw.Object) {
	var ref raw.ObjectRef
	dict, ok := t.doc.ResolveDict(obj)
	if !ok {
		return
	}
	if r, indirect := raw.RefOf(obj); indirect {
		if t.seenFonts[r] {
			return
		}
		t.seenFonts[r] = true
		ref = r
	} else {
		key := directFontKey(t.doc, dict)
		if _, seen := t.directFonts[key]; seen {
			return
		}
		ref = raw.ObjectRef{Num: t.nextSynthNum}
		t.nextSynthNum--
		t.directFonts[key] = ref
	}

	t.fonts = append(t.fonts, FontRef{Ref: ref, Dict: dict, PageIndex: t.page})

	if sub, _ := t.doc.DictGetName(dict, "Subtype"); sub == "Type3" {
		if res, ok := t.doc.DictGetDict(dict, "Resources"); ok {
			t.visitResources(res, nil)
		}
	}
}

// directFontKey builds a stable identity for a font dictionary embedded
// directly in a resource dictionary.
func directFontKey(doc *raw.Document, dict raw.Dictionary) string {
	base, _ := doc.DictGetName(dict, "BaseFont")
	first, _ := doc.DictGetInt(dict, "FirstChar")
	last, _ := doc.DictGetInt(dict, "LastChar")
	return fmt.Sprintf("%s:%d:%d", base, first, last)
}
