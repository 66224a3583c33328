package fonts

import (
	"bytes"
	"context"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Read-only counterparts of the repair passes, used by compliance
// validation to report breaches without touching the document.

// CheckTrueTypeEncoding checks an embedded TrueType font against the
// archival encoding rules and returns a violation description, or ""
// when the font is compliant.
func (e *Engine) CheckTrueTypeEncoding(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo) string {
	if !info.Embedded || info.FontFileKey != "FontFile2" {
		return ""
	}
	if info.Symbolic {
		if _, has := fontDict.Get(raw.NameLiteral("Encoding")); has {
			return "symbolic TrueType font has an /Encoding entry"
		}
		if info.Flags&flagNonsymbolic != 0 {
			return "font descriptor sets both Symbolic and Nonsymbolic flags"
		}
		if f, err := parseSfnt(info.Program); err == nil {
			if cmap, err := f.table("cmap"); err == nil {
				subs := parseCmapSubtables(cmap)
				if len(subs) > 1 {
					ms := findCmapSubtable(subs, 3, 0)
					if ms == nil || len(parseCmapMapping(*ms)) == 0 {
						return "symbolic TrueType font with several cmap subtables lacks a Microsoft Symbol subtable"
					}
				}
			}
		}
		return ""
	}

	switch enc := doc.DictGet(fontDict, "Encoding").(type) {
	case raw.Name:
		if v := enc.Value(); v != "WinAnsiEncoding" && v != "MacRomanEncoding" {
			return "non-symbolic TrueType font encoding is not WinAnsi or MacRoman"
		}
	case raw.Dictionary:
		if base, ok := doc.DictGetName(enc, "BaseEncoding"); !ok ||
			(base != "WinAnsiEncoding" && base != "MacRomanEncoding") {
			return "non-symbolic TrueType font has no compliant base encoding"
		}
		if diffs, ok := doc.DictGetArray(enc, "Differences"); ok && !differencesAreAGL(doc, diffs) {
			return "encoding Differences use glyph names outside the Adobe Glyph List"
		}
	default:
		return "non-symbolic TrueType font has no /Encoding entry"
	}
	return ""
}

// HasNotdef reports whether an embedded font program defines a .notdef
// glyph at GID 0.
func (e *Engine) HasNotdef(ctx context.Context, doc *raw.Document, info *FontInfo) (bool, error) {
	if !info.Embedded {
		return false, ErrNotEmbedded
	}
	switch {
	case isSfntSignature(info.Program):
		f, err := parseSfnt(info.Program)
		if err != nil {
			return false, err
		}
		if f.hasTable("glyf") {
			return sfntHasNotdef(f), nil
		}
		cffData, err := f.table("CFF ")
		if err != nil {
			return false, err
		}
		return cffHasNotdef(cffData)
	case info.FontFileKey == "FontFile3":
		return cffHasNotdef(info.Program)
	case info.FontFileKey == "FontFile":
		t1, err := parseType1(info.Program)
		if err != nil {
			return false, err
		}
		return bytes.Contains(t1Decrypt(eexecKey, t1.cipher), []byte("/.notdef")), nil
	}
	return false, ErrUnsupportedFormat
}

func cffHasNotdef(data []byte) (bool, error) {
	c, err := parseCFFFont(data)
	if err != nil {
		return false, err
	}
	return c.hasNotdef(), nil
}

// ToUnicodeViolations counts codes in a font's ToUnicode stream mapped
// to forbidden Unicode values.
func (e *Engine) ToUnicodeViolations(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary) int {
	m := e.existingToUnicode(ctx, doc, fontDict)
	bad := 0
	for _, rs := range m {
		if forbiddenUnicode(rs) {
			bad++
		}
	}
	return bad
}

// MissingUnicode counts codes the document uses with a font that map to
// no Unicode value, through neither the ToUnicode stream nor the font's
// encoding or cmap.
func (e *Engine) MissingUnicode(ctx context.Context, doc *raw.Document, fr FontRef, info *FontInfo, usage *Usage) int {
	codes := usage.For(doc, fr)
	if len(codes) == 0 {
		return 0
	}
	if info.Kind == KindType0 && encodingIsUnicode(doc, fr.Dict) {
		return 0
	}
	m := e.existingToUnicode(ctx, doc, fr.Dict)
	derived := e.deriveToUnicode(ctx, doc, fr.Dict, info, codes)

	missing := 0
	for c := range codes {
		if rs, ok := m[c]; ok && !forbiddenUnicode(rs) {
			continue
		}
		if rs, ok := derived[c]; ok && !forbiddenUnicode(rs) {
			continue
		}
		missing++
	}
	return missing
}
