package fonts

import (
	"bytes"
	"context"

	"github.com/wudi/pdfarchive/ir/raw"
)

// FontKind classifies a font dictionary by its /Subtype.
type FontKind int

const (
	KindUnknown FontKind = iota
	KindType1
	KindMMType1
	KindTrueType
	KindType3
	KindType0
)

func (k FontKind) String() string {
	switch k {
	case KindType1:
		return "Type1"
	case KindMMType1:
		return "MMType1"
	case KindTrueType:
		return "TrueType"
	case KindType3:
		return "Type3"
	case KindType0:
		return "Type0"
	}
	return "Unknown"
}

// FontInfo is the result of analyzing one font dictionary.
type FontInfo struct {
	Kind     FontKind
	BaseFont string

	// Descendant is the CIDFont dictionary of a Type0 font, nil otherwise.
	Descendant        raw.Dictionary
	DescendantSubtype string

	// Descriptor is the FontDescriptor dictionary (the descendant's for
	// Type0 fonts), nil when absent.
	Descriptor raw.Dictionary

	// Embedded is true when the descriptor carries a font program stream
	// whose leading bytes match the declared format.
	Embedded bool

	// FontFileKey is the descriptor key the program was found under
	// (FontFile, FontFile2 or FontFile3), empty when not embedded.
	FontFileKey string

	// Program is the decoded font program, nil when not embedded.
	Program []byte

	// Flags is the descriptor /Flags value; Symbolic is its bit 3
	// (value 4).
	Flags    int64
	Symbolic bool

	// SubsetTag is the six-letter prefix of BaseFont when present
	// (without the '+'), empty otherwise.
	SubsetTag string

	// Standard14 is true when BaseFont (after stripping any subset tag)
	// is one of the fourteen standard PDF faces.
	Standard14 bool
}

// standard14 is the set of base fonts every conforming reader must
// provide. PDF/A requires these to be embedded regardless.
var standard14 = map[string]bool{
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Symbol": true, "ZapfDingbats": true,
}

// IsStandard14 reports whether name (without subset tag) is a standard
// PDF base font.
func IsStandard14(name string) bool { return standard14[StripSubsetTag(name)] }

// StripSubsetTag removes a leading "ABCDEF+" subset prefix from a font
// name. Only the exact six-uppercase-letters-plus form is recognized.
func StripSubsetTag(name string) string {
	if len(name) > 7 && name[6] == '+' {
		for i := 0; i < 6; i++ {
			if name[i] < 'A' || name[i] > 'Z' {
				return name
			}
		}
		return name[7:]
	}
	return name
}

// subsetTagOf returns the subset prefix of name, or "".
func subsetTagOf(name string) string {
	if StripSubsetTag(name) != name {
		return name[:6]
	}
	return ""
}

// AnalyzeFont inspects a font dictionary and reports its embedding state.
// The font program stream, when present, is decoded and its signature
// verified against the declared format; a program that fails the
// signature check is reported as not embedded.
func (e *Engine) AnalyzeFont(ctx context.Context, doc *raw.Document, dict raw.Dictionary) *FontInfo {
	info := &FontInfo{}
	sub, _ := doc.DictGetName(dict, "Subtype")
	switch sub {
	case "Type1":
		info.Kind = KindType1
	case "MMType1":
		info.Kind = KindMMType1
	case "TrueType":
		info.Kind = KindTrueType
	case "Type3":
		info.Kind = KindType3
	case "Type0":
		info.Kind = KindType0
	}

	base, _ := doc.DictGetName(dict, "BaseFont")
	info.BaseFont = base
	info.SubsetTag = subsetTagOf(base)
	info.Standard14 = IsStandard14(base)

	target := dict
	if info.Kind == KindType0 {
		if desc, ok := doc.DictGetArray(dict, "DescendantFonts"); ok && desc.Len() > 0 {
			if cidFont, ok := doc.ArrayGet(desc, 0).(raw.Dictionary); ok {
				info.Descendant = cidFont
				info.DescendantSubtype, _ = doc.DictGetName(cidFont, "Subtype")
				target = cidFont
			}
		}
	}

	fd, ok := doc.DictGetDict(target, "FontDescriptor")
	if !ok {
		return info
	}
	info.Descriptor = fd
	if flags, ok := doc.DictGetInt(fd, "Flags"); ok {
		info.Flags = flags
		info.Symbolic = flags&4 != 0
	}

	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		st, ok := doc.DictGetStream(fd, key)
		if !ok {
			continue
		}
		data, err := e.filters.DecodeStream(ctx, doc, st)
		if err != nil {
			e.log.Warn("font program stream undecodable",
				fieldStr("font", base), fieldStr("key", key), fieldErr(err))
			continue
		}
		subtype, _ := doc.DictGetName(st.Dictionary(), "Subtype")
		if !programSignatureValid(key, subtype, data) {
			e.log.Warn("font program signature mismatch",
				fieldStr("font", base), fieldStr("key", key))
			continue
		}
		info.Embedded = true
		info.FontFileKey = key
		info.Program = data
		break
	}
	return info
}

// programSignatureValid checks the leading bytes of a font program
// against the descriptor key it was stored under.
func programSignatureValid(key, streamSubtype string, data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch key {
	case "FontFile2":
		return isSfntSignature(data)
	case "FontFile3":
		switch streamSubtype {
		case "OpenType":
			return isSfntSignature(data)
		default:
			// Type1C / CIDFontType0C: bare CFF.
			return isCFFSignature(data)
		}
	case "FontFile":
		// PFA starts with the PostScript magic; PFB with a segment header.
		return bytes.HasPrefix(data, []byte("%!")) || (data[0] == 0x80 && data[1] == 0x01)
	}
	return false
}

func isSfntSignature(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	sig := data[:4]
	return bytes.Equal(sig, []byte{0x00, 0x01, 0x00, 0x00}) ||
		bytes.Equal(sig, []byte("true")) ||
		bytes.Equal(sig, []byte("OTTO")) ||
		bytes.Equal(sig, []byte("ttcf"))
}

func isCFFSignature(data []byte) bool {
	return len(data) >= 4 && data[0] >= 1 && data[0] <= 2 && data[2] >= 4
}
