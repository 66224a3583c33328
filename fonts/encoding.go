package fonts

import (
	"context"
	"fmt"

	"github.com/wudi/pdfarchive/ir/raw"
)

// TrueType encoding repair. Archival validation applies four rules to
// embedded TrueType fonts: non-symbolic fonts must carry a WinAnsi or
// MacRoman encoding whose Differences use only glyph names resolvable
// through the Adobe Glyph List, and their program must expose a
// non-symbol cmap subtable; symbolic fonts must have no /Encoding entry
// at all and, when the program has several cmap subtables, a usable
// (3,0) Microsoft Symbol subtable.

// FixTrueTypeEncodings repairs every embedded TrueType font in the
// document and returns the number of fonts modified.
func (e *Engine) FixTrueTypeEncodings(ctx context.Context, doc *raw.Document) (int, error) {
	fixed := 0
	for _, fr := range CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		info := e.AnalyzeFont(ctx, doc, fr.Dict)
		if info.Kind != KindTrueType || !info.Embedded || info.FontFileKey != "FontFile2" {
			continue
		}
		changed, err := e.fixTrueTypeFont(ctx, doc, fr.Dict, info)
		if err != nil {
			e.log.Warn("truetype encoding repair failed",
				fieldStr("font", info.BaseFont), fieldErr(err))
			continue
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}

func (e *Engine) fixTrueTypeFont(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo) (bool, error) {
	if info.Symbolic {
		return e.fixSymbolicTrueType(ctx, doc, fontDict, info)
	}
	return e.fixNonsymbolicTrueType(ctx, doc, fontDict, info)
}

// fixSymbolicTrueType deletes /Encoding, pins the descriptor flags, and
// guarantees a usable (3,0) cmap subtable.
func (e *Engine) fixSymbolicTrueType(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo) (bool, error) {
	changed := false

	if _, has := fontDict.Get(raw.NameLiteral("Encoding")); has {
		fontDict.Delete(raw.NameLiteral("Encoding"))
		changed = true
	}

	// Symbolic set, Nonsymbolic cleared; both set is itself a violation.
	if info.Descriptor != nil {
		if flags, ok := doc.DictGetInt(info.Descriptor, "Flags"); ok {
			want := (flags | flagSymbolic) &^ flagNonsymbolic
			if want != flags {
				info.Descriptor.Set(raw.NameLiteral("Flags"), raw.NumberInt(want))
				changed = true
			}
		}
	}

	f, err := parseSfnt(info.Program)
	if err != nil {
		return changed, err
	}
	cmap, err := f.table("cmap")
	if err != nil {
		// No cmap at all: synthesize one from nothing is impossible;
		// leave the program alone.
		return changed, nil
	}
	subs := parseCmapSubtables(cmap)
	if len(subs) <= 1 {
		return changed, nil
	}

	ms := findCmapSubtable(subs, 3, 0)
	if ms != nil && len(parseCmapMapping(*ms)) > 0 {
		return changed, nil
	}

	source := symbolSourceMapping(subs)
	if len(source) == 0 {
		return changed, nil
	}
	symbolSub := synthesizeSymbolSubtable(source)

	var records []cmapSubtable
	for _, sub := range subs {
		if sub.platformID == 3 && sub.encodingID == 0 {
			continue // replaced below
		}
		records = append(records, sub)
	}
	records = append(records, cmapSubtable{platformID: 3, encodingID: 0, format: 4, data: symbolSub})

	if err := e.rewriteProgramCmap(ctx, doc, info, f, buildCmapTable(records)); err != nil {
		return changed, err
	}
	return true, nil
}

// fixNonsymbolicTrueType enforces a compliant /Encoding entry and makes
// sure the program has a non-symbol cmap subtable.
func (e *Engine) fixNonsymbolicTrueType(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo) (bool, error) {
	changed := false

	encRaw := doc.DictGet(fontDict, "Encoding")
	switch enc := encRaw.(type) {
	case raw.Name:
		if v := enc.Value(); v != "WinAnsiEncoding" && v != "MacRomanEncoding" {
			fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
			changed = true
		}
	case raw.Dictionary:
		if base, ok := doc.DictGetName(enc, "BaseEncoding"); !ok || (base != "WinAnsiEncoding" && base != "MacRomanEncoding") {
			enc.Set(raw.NameLiteral("BaseEncoding"), raw.NameLiteral("WinAnsiEncoding"))
			changed = true
		}
		if diffs, ok := doc.DictGetArray(enc, "Differences"); ok {
			if !differencesAreAGL(doc, diffs) {
				enc.Delete(raw.NameLiteral("Differences"))
				changed = true
			}
		}
	default:
		fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
		changed = true
	}

	f, err := parseSfnt(info.Program)
	if err != nil {
		return changed, err
	}
	cmap, err := f.table("cmap")
	if err != nil {
		return changed, nil
	}
	subs := parseCmapSubtables(cmap)
	if len(subs) == 0 {
		return changed, nil
	}
	onlySymbol := true
	for _, sub := range subs {
		if sub.platformID != 3 || sub.encodingID != 0 {
			onlySymbol = false
			break
		}
	}
	if !onlySymbol {
		return changed, nil
	}

	// Only a (3,0) table: derive a (3,1) view so non-symbolic text
	// lookups succeed, exposing private-range codes at their low byte.
	source := symbolSourceMapping(subs)
	if len(source) == 0 {
		return changed, nil
	}
	records := append([]cmapSubtable(nil), subs...)
	records = append(records, cmapSubtable{
		platformID: 3, encodingID: 1, format: 4,
		data: synthesizeUnicodeSubtable(source),
	})
	if err := e.rewriteProgramCmap(ctx, doc, info, f, buildCmapTable(records)); err != nil {
		return changed, err
	}
	return true, nil
}

// differencesAreAGL reports whether every name in a /Differences array
// resolves to Unicode under the AGL conventions.
func differencesAreAGL(doc *raw.Document, diffs raw.Array) bool {
	for i := 0; i < diffs.Len(); i++ {
		switch v := doc.ArrayGet(diffs, i).(type) {
		case raw.Name:
			if !IsAGLName(v.Value()) {
				return false
			}
		}
	}
	return true
}

// rewriteProgramCmap rebuilds the font program with a new cmap table and
// stores it back into the descriptor's FontFile2 slot.
func (e *Engine) rewriteProgramCmap(ctx context.Context, doc *raw.Document, info *FontInfo, f *sfntFont, newCmap []byte) error {
	if err := validateCmapOffsets(newCmap); err != nil {
		return fmt.Errorf("synthesized cmap invalid: %w", err)
	}
	b := &fontBuilder{}
	if f.hasTable("CFF ") {
		b.scaler = scalerCFF
	}
	for tag := range f.tables {
		data, err := f.table(tag)
		if err != nil {
			return err
		}
		b.addTable(tag, data)
	}
	b.addTable("cmap", newCmap)
	return e.replaceFontProgram(ctx, doc, info, b.bytes())
}

// replaceFontProgram swaps the embedded font program stream for a new
// one, reusing the existing indirect object when possible. The stream
// is rebuilt to match the descriptor slot it lives in: FontFile2 gets
// /Length1, FontFile3 keeps its /Subtype, FontFile gets the Type1
// segment lengths.
func (e *Engine) replaceFontProgram(ctx context.Context, doc *raw.Document, info *FontInfo, program []byte) error {
	if info.Descriptor == nil || info.FontFileKey == "" {
		return fmt.Errorf("font has no embedded program slot")
	}
	var ref raw.ObjectRef
	var err error
	switch info.FontFileKey {
	case "FontFile":
		ref, err = e.addType1Stream(ctx, doc, program)
	case "FontFile3":
		subtype := "Type1C"
		if st, ok := doc.DictGetStream(info.Descriptor, "FontFile3"); ok {
			if s, ok := doc.DictGetName(st.Dictionary(), "Subtype"); ok {
				subtype = s
			}
		}
		if isSfntSignature(program) {
			subtype = "OpenType"
		}
		ref, err = e.addStreamWithSubtype(ctx, doc, program, subtype)
	default:
		ref, err = e.addFontFile2(ctx, doc, program)
	}
	if err != nil {
		return err
	}
	newStream := doc.Objects[ref]

	existing := raw.DictGetRaw(info.Descriptor, info.FontFileKey)
	if oldRef, ok := raw.RefOf(existing); ok {
		doc.Put(oldRef, newStream)
		delete(doc.Objects, ref)
	} else {
		info.Descriptor.Set(raw.NameLiteral(info.FontFileKey), raw.Ref(ref.Num, ref.Gen))
	}
	info.Program = program
	return nil
}
