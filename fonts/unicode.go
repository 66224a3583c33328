package fonts

import (
	"context"
	"encoding/binary"

	"github.com/wudi/pdfarchive/ir/raw"
)

// unicodeCMapNames are the predefined CMaps whose character codes are
// themselves UTF-16/UCS-2 Unicode; fonts encoded with one need no PUA
// gap filling.
var unicodeCMapNames = map[string]bool{
	"UniGB-UTF16-H": true, "UniGB-UTF16-V": true,
	"UniCNS-UTF16-H": true, "UniCNS-UTF16-V": true,
	"UniJIS-UTF16-H": true, "UniJIS-UTF16-V": true,
	"UniKS-UTF16-H": true, "UniKS-UTF16-V": true,
	"UniGB-UCS2-H": true, "UniGB-UCS2-V": true,
	"UniCNS-UCS2-H": true, "UniCNS-UCS2-V": true,
	"UniJIS-UCS2-H": true, "UniJIS-UCS2-V": true,
	"UniKS-UCS2-H": true, "UniKS-UCS2-V": true,
}

// SanitizeToUnicode rewrites every ToUnicode stream that maps a code to
// a forbidden value (U+0000, byte order marks, surrogates, or nothing):
// offenders get fresh Private Use Area code points. It returns the
// number of streams rewritten.
func (e *Engine) SanitizeToUnicode(ctx context.Context, doc *raw.Document) (int, error) {
	fixed := 0
	for _, fr := range CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		st, ok := doc.DictGetStream(fr.Dict, "ToUnicode")
		if !ok {
			continue
		}
		data, err := e.filters.DecodeStream(ctx, doc, st)
		if err != nil {
			e.log.Warn("ToUnicode stream undecodable", fieldErr(err))
			continue
		}
		m, err := ParseToUnicode(data)
		if err != nil || len(m) == 0 {
			continue
		}
		rewritten := sanitizeCodeMap(m)
		if len(rewritten) == 0 {
			continue
		}
		if err := e.setToUnicode(ctx, doc, fr.Dict, m, toUnicodeCodeBytes(doc, fr.Dict)); err != nil {
			return fixed, err
		}
		base, _ := doc.DictGetName(fr.Dict, "BaseFont")
		e.log.Info("rewrote ToUnicode with private-use replacements",
			fieldStr("font", base), fieldInt("codes", len(rewritten)))
		fixed++
	}
	return fixed, nil
}

// FillToUnicodeGaps guarantees that every character code the document
// uses has a Unicode mapping, as the accessible and Unicode conformance
// levels require. Missing codes are first resolved through the font
// (encoding and AGL for simple fonts, CIDToGIDMap composed with the
// program's cmap for CIDFonts); what remains gets Private Use Area code
// points, with a warning since extraction of those is not meaningful.
func (e *Engine) FillToUnicodeGaps(ctx context.Context, doc *raw.Document) (int, error) {
	usage := e.CollectUsage(ctx, doc)
	fixed := 0
	for _, fr := range CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		codes := usage.For(doc, fr)
		if len(codes) == 0 {
			continue
		}
		info := e.AnalyzeFont(ctx, doc, fr.Dict)
		if info.Kind == KindType0 && encodingIsUnicode(doc, fr.Dict) {
			continue
		}

		m := e.existingToUnicode(ctx, doc, fr.Dict)
		hadStream := m != nil
		if m == nil {
			m = e.deriveToUnicode(ctx, doc, fr.Dict, info, codes)
		}

		added := fillCodeMapGaps(m, codes)
		if len(added) == 0 && hadStream {
			continue
		}
		if len(m) == 0 {
			continue
		}
		codeBytes := 1
		if info.Kind == KindType0 {
			codeBytes = 2
		}
		if err := e.setToUnicode(ctx, doc, fr.Dict, m, codeBytes); err != nil {
			return fixed, err
		}
		if len(added) > 0 {
			e.log.Warn("ToUnicode gaps filled with private-use code points, extraction of those codes will not be meaningful",
				fieldStr("font", info.BaseFont), fieldInt("codes", len(added)))
		}
		fixed++
	}
	return fixed, nil
}

// encodingIsUnicode reports whether a Type0 font's /Encoding names one
// of the predefined UTF-16/UCS-2 CMaps.
func encodingIsUnicode(doc *raw.Document, fontDict raw.Dictionary) bool {
	name, ok := doc.DictGetName(fontDict, "Encoding")
	return ok && unicodeCMapNames[name]
}

// existingToUnicode parses the font's current ToUnicode stream, nil when
// absent or unreadable.
func (e *Engine) existingToUnicode(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary) CodeMap {
	st, ok := doc.DictGetStream(fontDict, "ToUnicode")
	if !ok {
		return nil
	}
	data, err := e.filters.DecodeStream(ctx, doc, st)
	if err != nil {
		return nil
	}
	m, err := ParseToUnicode(data)
	if err != nil {
		return nil
	}
	return m
}

// deriveToUnicode builds a baseline mapping for a font without a
// ToUnicode stream.
func (e *Engine) deriveToUnicode(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo, codes map[uint32]bool) CodeMap {
	m := make(CodeMap)
	if info.Kind != KindType0 {
		diffs := differencesMap(doc, fontDict)
		base := StripSubsetTag(info.BaseFont)
		for code := range codes {
			if code > 0xFF {
				continue
			}
			if r, ok := simpleRune(doc, fontDict, diffs, byte(code)); ok {
				m[code] = []rune{r}
				continue
			}
			// The two symbol faces carry their own built-in encodings.
			switch base {
			case "Symbol":
				if r, ok := SymbolCodeToRune(byte(code)); ok {
					m[code] = []rune{r}
				}
			case "ZapfDingbats":
				if r, ok := DingbatsCodeToRune(byte(code)); ok {
					m[code] = []rune{r}
				}
			}
		}
		return m
	}

	// CIDFont: compose CID→GID with the program's GID→Unicode cmap.
	if !info.Embedded || !isSfntSignature(info.Program) {
		return m
	}
	f, err := parseSfnt(info.Program)
	if err != nil {
		return m
	}
	gidToRune := invertCmap(unicodeMapping(f))
	if len(gidToRune) == 0 {
		return m
	}

	cidToGID := func(cid uint32) int { return int(cid) }
	if info.Descendant != nil {
		if st, ok := doc.DictGetStream(info.Descendant, "CIDToGIDMap"); ok {
			if data, err := e.filters.DecodeStream(ctx, doc, st); err == nil {
				cidToGID = func(cid uint32) int {
					off := int(cid) * 2
					if off+2 > len(data) {
						return 0
					}
					return int(binary.BigEndian.Uint16(data[off:]))
				}
			}
		}
	}
	for cid := range codes {
		if r, ok := gidToRune[uint16(cidToGID(cid))]; ok {
			m[cid] = []rune{r}
		}
	}
	return m
}

// setToUnicode serializes a CodeMap and stores it under /ToUnicode,
// replacing the existing stream object in place when it is indirect.
func (e *Engine) setToUnicode(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, m CodeMap, codeBytes int) error {
	ref, err := e.addStream(ctx, doc, FormatToUnicode(m, codeBytes))
	if err != nil {
		return err
	}
	if existing, ok := raw.RefOf(raw.DictGetRaw(fontDict, "ToUnicode")); ok {
		doc.Put(existing, doc.Objects[ref])
		delete(doc.Objects, ref)
		return nil
	}
	fontDict.Set(raw.NameLiteral("ToUnicode"), raw.Ref(ref.Num, ref.Gen))
	return nil
}

// toUnicodeCodeBytes picks the code width for a font's ToUnicode CMap
// from its subtype.
func toUnicodeCodeBytes(doc *raw.Document, fontDict raw.Dictionary) int {
	if sub, ok := doc.DictGetName(fontDict, "Subtype"); ok && sub == "Type0" {
		return 2
	}
	return 1
}
