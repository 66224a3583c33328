package fonts

import (
	"context"

	"github.com/wudi/pdfarchive/contentstream"
	"github.com/wudi/pdfarchive/ir/raw"
)

// Usage records which character codes the document draws with each font.
// Fonts are keyed by indirect reference; fonts written inline in a
// resource dictionary fall back to the same synthetic identity that
// CollectFonts assigns.
type Usage struct {
	codes map[string]map[uint32]bool
}

func usageKey(doc *raw.Document, ref raw.ObjectRef, dict raw.Dictionary) string {
	if ref.Num > 0 {
		return ref.String()
	}
	return "direct:" + directFontKey(doc, dict)
}

// For returns the set of codes used with the given font, or nil when the
// font never draws text.
func (u *Usage) For(doc *raw.Document, fr FontRef) map[uint32]bool {
	if u == nil {
		return nil
	}
	return u.codes[usageKey(doc, fr.Ref, fr.Dict)]
}

// CollectUsage parses every content stream in the document (pages, form
// XObjects, tiling patterns, annotation appearances) and records the
// character codes drawn with each font. Type0 fonts consume two-byte
// codes; all other fonts single bytes. Undecodable or unparsable
// content streams are skipped with a warning so one corrupt page does
// not abort the scan.
func (e *Engine) CollectUsage(ctx context.Context, doc *raw.Document) *Usage {
	c := &usageCollector{
		engine:  e,
		ctx:     ctx,
		doc:     doc,
		usage:   &Usage{codes: make(map[string]map[uint32]bool)},
		visited: make(map[raw.ObjectRef]bool),
	}
	for i, page := range doc.Pages() {
		res := (&traverser{doc: doc}).resourcesOf(page)
		data, ok := c.pageContent(page)
		if !ok {
			continue
		}
		c.scanContent(data, res, i)
		c.scanAnnotations(page, res, i)
	}
	return c.usage
}

type usageCollector struct {
	engine  *Engine
	ctx     context.Context
	doc     *raw.Document
	usage   *Usage
	visited map[raw.ObjectRef]bool
}

// pageContent concatenates a page's /Contents streams after decoding.
func (c *usageCollector) pageContent(page raw.Dictionary) ([]byte, bool) {
	contents := raw.DictGetRaw(page, "Contents")
	var parts [][]byte
	appendStream := func(obj raw.Object) {
		st, ok := c.doc.ResolveStream(obj)
		if !ok {
			return
		}
		data, err := c.engine.filters.DecodeStream(c.ctx, c.doc, st)
		if err != nil {
			c.engine.log.Warn("content stream undecodable", fieldErr(err))
			return
		}
		parts = append(parts, data)
	}
	switch v := c.doc.Resolve(contents).(type) {
	case raw.Stream:
		appendStream(contents)
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			appendStream(item)
		}
	}
	if len(parts) == 0 {
		return nil, false
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		joined = append(joined, '\n')
		joined = append(joined, p...)
	}
	return joined, true
}

// scanContent tokenizes one content stream and follows text and Do
// operators. res is the resource dictionary in scope.
func (c *usageCollector) scanContent(data []byte, res raw.Dictionary, page int) {
	ops, err := contentstream.Parse(data)
	if err != nil {
		c.engine.log.Warn("content stream unparsable",
			fieldInt("page", page), fieldErr(err))
		return
	}

	type textState struct {
		key      string
		twoBytes bool
		valid    bool
	}
	var cur textState
	var stack []textState

	record := func(s []byte) {
		if !cur.valid {
			return
		}
		set := c.usage.codes[cur.key]
		if set == nil {
			set = make(map[uint32]bool)
			c.usage.codes[cur.key] = set
		}
		if cur.twoBytes {
			if len(s)%2 == 1 {
				c.engine.log.Warn("odd-length string with two-byte codes, trailing byte dropped",
					fieldInt("page", page), fieldInt("len", len(s)))
			}
			for i := 0; i+1 < len(s); i += 2 {
				set[uint32(s[i])<<8|uint32(s[i+1])] = true
			}
		} else {
			for _, b := range s {
				set[uint32(b)] = true
			}
		}
	}

	for _, op := range ops {
		switch op.Operator {
		case "q":
			stack = append(stack, cur)
		case "Q":
			if n := len(stack); n > 0 {
				cur = stack[n-1]
				stack = stack[:n-1]
			}
		case "Tf":
			cur = textState{}
			if len(op.Operands) < 1 || res == nil {
				continue
			}
			name, ok := op.Operands[0].(contentstream.NameOperand)
			if !ok {
				continue
			}
			fontsDict, ok := c.doc.DictGetDict(res, "Font")
			if !ok {
				continue
			}
			entry, ok := fontsDict.Get(raw.NameLiteral(name.Value))
			if !ok {
				continue
			}
			fontDict, ok := c.doc.ResolveDict(entry)
			if !ok {
				continue
			}
			ref, _ := raw.RefOf(entry)
			sub, _ := c.doc.DictGetName(fontDict, "Subtype")
			cur = textState{
				key:      usageKey(c.doc, ref, fontDict),
				twoBytes: sub == "Type0",
				valid:    true,
			}
		case "Tj", "'":
			if len(op.Operands) >= 1 {
				if s, ok := op.Operands[len(op.Operands)-1].(contentstream.StringOperand); ok {
					record(s.Value)
				}
			}
		case "\"":
			if len(op.Operands) >= 3 {
				if s, ok := op.Operands[2].(contentstream.StringOperand); ok {
					record(s.Value)
				}
			}
		case "TJ":
			if len(op.Operands) >= 1 {
				if arr, ok := op.Operands[0].(contentstream.ArrayOperand); ok {
					for _, item := range arr.Items {
						if s, ok := item.(contentstream.StringOperand); ok {
							record(s.Value)
						}
					}
				}
			}
		case "Do":
			if len(op.Operands) >= 1 && res != nil {
				if name, ok := op.Operands[0].(contentstream.NameOperand); ok {
					if xobjs, ok := c.doc.DictGetDict(res, "XObject"); ok {
						entry, _ := xobjs.Get(raw.NameLiteral(name.Value))
						c.scanContainer(entry, res, page)
					}
				}
			}
		}
	}

	// Tiling patterns draw with their own content.
	if patterns, ok := c.doc.DictGetDict(res, "Pattern"); ok {
		for _, key := range patterns.Keys() {
			entry, _ := patterns.Get(key)
			c.scanContainer(entry, res, page)
		}
	}
}

// scanContainer recurses into a form XObject or tiling pattern stream.
func (c *usageCollector) scanContainer(obj raw.Object, parentRes raw.Dictionary, page int) {
	if ref, ok := raw.RefOf(obj); ok {
		if c.visited[ref] {
			return
		}
		c.visited[ref] = true
	}
	st, ok := c.doc.ResolveStream(obj)
	if !ok {
		return
	}
	dict := st.Dictionary()
	if sub, _ := c.doc.DictGetName(dict, "Subtype"); sub == "Image" {
		return
	}
	if pt, ok := c.doc.DictGetInt(dict, "PatternType"); ok && pt != 1 {
		return
	}
	res, ok := c.doc.DictGetDict(dict, "Resources")
	if !ok {
		res = parentRes
	}
	data, err := c.engine.filters.DecodeStream(c.ctx, c.doc, st)
	if err != nil {
		c.engine.log.Warn("form content undecodable", fieldErr(err))
		return
	}
	c.scanContent(data, res, page)
}

func (c *usageCollector) scanAnnotations(page raw.Dictionary, res raw.Dictionary, pageIdx int) {
	annots, ok := c.doc.DictGetArray(page, "Annots")
	if !ok {
		return
	}
	for i := 0; i < annots.Len(); i++ {
		annot, ok := c.doc.ArrayGet(annots, i).(raw.Dictionary)
		if !ok {
			continue
		}
		ap, ok := c.doc.DictGetDict(annot, "AP")
		if !ok {
			continue
		}
		for _, state := range []string{"N", "R", "D"} {
			entryRaw := raw.DictGetRaw(ap, state)
			switch v := c.doc.Resolve(entryRaw).(type) {
			case raw.Stream:
				c.scanContainer(entryRaw, res, pageIdx)
			case raw.Dictionary:
				for _, key := range v.Keys() {
					sub, _ := v.Get(key)
					c.scanContainer(sub, res, pageIdx)
				}
			}
		}
	}
}
