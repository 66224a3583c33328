package fonts

import (
	"context"
	"testing"
)

func TestStripSubsetTag(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ABCDEF+Times-Roman", "Times-Roman"},
		{"XXXXXX+Arial", "Arial"},
		{"Times-Roman", "Times-Roman"},
		{"ABCDE1+Arial", "ABCDE1+Arial"}, // digit in tag
		{"ABCDEF+", "ABCDEF+"},           // nothing after the plus
		{"abcdef+Arial", "abcdef+Arial"}, // lowercase
	}
	for _, c := range cases {
		if got := StripSubsetTag(c.in); got != c.want {
			t.Errorf("StripSubsetTag(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if tag := subsetTagOf("ABCDEF+Times-Roman"); tag != "ABCDEF" {
		t.Errorf("subsetTagOf = %q", tag)
	}
	if tag := subsetTagOf("Times-Roman"); tag != "" {
		t.Errorf("subsetTagOf without prefix = %q", tag)
	}
}

func TestIsStandard14(t *testing.T) {
	for _, name := range []string{"Helvetica", "Times-BoldItalic", "ZapfDingbats", "QWERTY+Symbol"} {
		if !IsStandard14(name) {
			t.Errorf("%s not recognized as standard", name)
		}
	}
	for _, name := range []string{"Arial", "Helvetica-Light", ""} {
		if IsStandard14(name) {
			t.Errorf("%s wrongly recognized as standard", name)
		}
	}
}

func TestAnalyzeFontEmbeddedTrueType(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true})
	dict := td.simpleFontDict("TrueType", "GHIJKL+Custom", "FontFile2", program, flagSymbolic)
	td.addFont("F1", dict)

	info := newTestEngine().AnalyzeFont(context.Background(), td.doc, dict)
	if info.Kind != KindTrueType {
		t.Errorf("Kind = %v", info.Kind)
	}
	if !info.Embedded || info.FontFileKey != "FontFile2" {
		t.Errorf("Embedded = %v via %q", info.Embedded, info.FontFileKey)
	}
	if len(info.Program) != len(program) {
		t.Errorf("program length %d, want %d", len(info.Program), len(program))
	}
	if !info.Symbolic || info.SubsetTag != "GHIJKL" {
		t.Errorf("Symbolic = %v, SubsetTag = %q", info.Symbolic, info.SubsetTag)
	}
}

func TestAnalyzeFontRejectsBadSignature(t *testing.T) {
	td := newTestDoc("")
	// A FontFile2 slot holding something that is not an sfnt.
	dict := td.simpleFontDict("TrueType", "Junk", "FontFile2", []byte("not a font at all"), 32)
	td.addFont("F1", dict)

	info := newTestEngine().AnalyzeFont(context.Background(), td.doc, dict)
	if info.Embedded {
		t.Fatalf("garbage program accepted as embedded")
	}
}

func TestAnalyzeFontType0Descendant(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true})
	dict, cid := td.type0FontDict("CJK", "CIDFontType2", "FontFile2", program)
	td.addFont("F1", dict)

	info := newTestEngine().AnalyzeFont(context.Background(), td.doc, dict)
	if info.Kind != KindType0 {
		t.Errorf("Kind = %v", info.Kind)
	}
	if info.Descendant == nil || info.DescendantSubtype != "CIDFontType2" {
		t.Errorf("descendant not resolved: %v %q", info.Descendant, info.DescendantSubtype)
	}
	if !info.Embedded {
		t.Errorf("descendant program not found")
	}
	// The descriptor must be the descendant's, not the Type0 shell's.
	fd, ok := td.doc.DictGetDict(cid, "FontDescriptor")
	if !ok || info.Descriptor != fd {
		t.Errorf("descriptor not taken from descendant")
	}
}

func TestAnalyzeFontNotEmbedded(t *testing.T) {
	td := newTestDoc("")
	dict := td.simpleFontDict("Type1", "Helvetica", "", nil, 32)
	td.addFont("F1", dict)

	info := newTestEngine().AnalyzeFont(context.Background(), td.doc, dict)
	if info.Embedded || info.FontFileKey != "" || info.Program != nil {
		t.Fatalf("empty descriptor reported as embedded: %+v", info)
	}
	if !info.Standard14 {
		t.Errorf("Helvetica not flagged standard")
	}
}

func TestProgramSignatureValid(t *testing.T) {
	sfnt := []byte{0x00, 0x01, 0x00, 0x00, 0xAA}
	cff := []byte{1, 0, 4, 4}
	pfa := []byte("%!PS-AdobeFont-1.0")
	pfb := []byte{0x80, 0x01, 0x10, 0x00}

	cases := []struct {
		key, subtype string
		data         []byte
		want         bool
	}{
		{"FontFile2", "", sfnt, true},
		{"FontFile2", "", cff, false},
		{"FontFile3", "Type1C", cff, true},
		{"FontFile3", "CIDFontType0C", cff, true},
		{"FontFile3", "OpenType", sfnt, true},
		{"FontFile3", "OpenType", cff, false},
		{"FontFile", "", pfa, true},
		{"FontFile", "", pfb, true},
		{"FontFile", "", sfnt, false},
		{"FontFile2", "", []byte{0}, false},
	}
	for _, c := range cases {
		if got := programSignatureValid(c.key, c.subtype, c.data); got != c.want {
			t.Errorf("programSignatureValid(%s, %s, % x) = %v, want %v",
				c.key, c.subtype, c.data, got, c.want)
		}
	}
}

func TestIsCFFSignature(t *testing.T) {
	if !isCFFSignature([]byte{1, 0, 4, 2}) {
		t.Errorf("valid CFF header rejected")
	}
	if isCFFSignature([]byte{3, 0, 4, 2}) {
		t.Errorf("major version 3 accepted")
	}
	if isCFFSignature([]byte{1, 0, 2, 2}) {
		t.Errorf("header size below 4 accepted")
	}
}
