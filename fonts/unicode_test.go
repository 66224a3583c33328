package fonts

import (
	"context"
	"testing"

	"github.com/wudi/pdfarchive/ir/raw"
)

// setRawToUnicode attaches an uncompressed ToUnicode stream to a font.
func setRawToUnicode(td *testDoc, dict *raw.DictObj, cmap string) raw.ObjectRef {
	st := raw.Dict()
	st.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(cmap))))
	ref := td.doc.Add(raw.NewStream(st, []byte(cmap)))
	dict.Set(raw.NameLiteral("ToUnicode"), raw.Ref(ref.Num, ref.Gen))
	return ref
}

func (td *testDoc) toUnicodeOf(t *testing.T, e *Engine, dict raw.Dictionary) CodeMap {
	t.Helper()
	m := e.existingToUnicode(context.Background(), td.doc, dict)
	if m == nil {
		t.Fatalf("font has no readable ToUnicode stream")
	}
	return m
}

func TestSanitizeToUnicodeRewritesForbidden(t *testing.T) {
	td := newTestDoc("")
	dict := namedFont("Dirty")
	cmap := `begincmap
2 beginbfchar
<41> <0000>
<42> <0043>
endbfchar
endcmap
`
	ref := setRawToUnicode(td, dict, cmap)
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.SanitizeToUnicode(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}

	m := td.toUnicodeOf(t, e, dict)
	if got := m[0x41]; len(got) != 1 || got[0] != 0xE000 {
		t.Fatalf("forbidden mapping now %U, want U+E000", got)
	}
	if got := m[0x42]; len(got) != 1 || got[0] != 0x43 {
		t.Fatalf("valid mapping disturbed: %U", got)
	}

	// The stream object was replaced in place, not re-added.
	cur, _ := raw.RefOf(raw.DictGetRaw(dict, "ToUnicode"))
	if cur != ref {
		t.Fatalf("ToUnicode ref changed from %v to %v", ref, cur)
	}

	if fixed, _ := e.SanitizeToUnicode(ctx, td.doc); fixed != 0 {
		t.Fatalf("second pass rewrote %d streams", fixed)
	}
}

func TestSanitizeToUnicodeLeavesCleanStreams(t *testing.T) {
	td := newTestDoc("")
	dict := namedFont("Clean")
	setRawToUnicode(td, dict, "begincmap\n1 beginbfchar\n<41> <0041>\nendbfchar\nendcmap\n")
	td.addFont("F1", dict)

	fixed, err := newTestEngine().SanitizeToUnicode(context.Background(), td.doc)
	if err != nil || fixed != 0 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
}

func TestFillToUnicodeGapsDerivesFromEncoding(t *testing.T) {
	td := newTestDoc("BT /F1 12 Tf (AB) Tj ET")
	dict := namedFont("NoMap")
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FillToUnicodeGaps(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}

	m := td.toUnicodeOf(t, e, dict)
	if got := m[0x41]; len(got) != 1 || got[0] != 'A' {
		t.Fatalf("m[0x41] = %U", got)
	}
	if got := m[0x42]; len(got) != 1 || got[0] != 'B' {
		t.Fatalf("m[0x42] = %U", got)
	}
}

func TestFillToUnicodeGapsUsesPUAFallback(t *testing.T) {
	// A symbolic font whose code resolves through no encoding; the gap
	// gets a Private Use Area value.
	td := newTestDoc("BT /F1 12 Tf (\x01) Tj ET")
	dict := namedFont("Opaque")
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FillToUnicodeGaps(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	m := td.toUnicodeOf(t, e, dict)
	if got := m[0x01]; len(got) != 1 || got[0] != 0xE000 {
		t.Fatalf("m[0x01] = %U, want U+E000", got)
	}
}

func TestFillToUnicodeGapsExtendsExistingStream(t *testing.T) {
	td := newTestDoc("BT /F1 12 Tf (AB) Tj ET")
	dict := namedFont("Partial")
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	setRawToUnicode(td, dict, "begincmap\n1 beginbfchar\n<41> <0041>\nendbfchar\nendcmap\n")
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FillToUnicodeGaps(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	m := td.toUnicodeOf(t, e, dict)
	if got := m[0x41]; len(got) != 1 || got[0] != 'A' {
		t.Fatalf("existing entry lost: %U", got)
	}
	// The existing stream takes precedence over derivation, so the gap
	// for 'B' is PUA-filled rather than read from the encoding.
	if got := m[0x42]; len(got) != 1 || got[0] != 0xE000 {
		t.Fatalf("m[0x42] = %U, want U+E000", got)
	}
}

func TestFillToUnicodeGapsSkipsUnicodeCMaps(t *testing.T) {
	td := newTestDoc("BT /F1 12 Tf <4E2D> Tj ET")
	dict, _ := td.type0FontDict("UTF16Font", "CIDFontType0", "", nil)
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("UniJIS-UTF16-H"))
	td.addFont("F1", dict)

	fixed, err := newTestEngine().FillToUnicodeGaps(context.Background(), td.doc)
	if err != nil || fixed != 0 {
		t.Fatalf("fixed = %d, err %v; UTF-16 encoded font needs no map", fixed, err)
	}
}

func TestFillToUnicodeGapsCIDFromProgramCmap(t *testing.T) {
	td := newTestDoc("BT /F1 12 Tf <0001> Tj ET")
	program := buildTestTrueType(ttOptions{
		numGlyphs: 2,
		notdef:    true,
		cmap31:    map[uint32]uint16{0x4E2D: 1},
	})
	dict, _ := td.type0FontDict("CJKMap", "CIDFontType2", "FontFile2", program)
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FillToUnicodeGaps(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	m := td.toUnicodeOf(t, e, dict)
	// CID 1 → GID 1 (identity) → U+4E2D through the inverted cmap.
	if got := m[0x0001]; len(got) != 1 || got[0] != 0x4E2D {
		t.Fatalf("m[0x0001] = %U, want U+4E2D", got)
	}
}

func TestDeriveToUnicodeSymbolBuiltins(t *testing.T) {
	td := newTestDoc("")
	dict := namedFont("Symbol")
	e := newTestEngine()
	info := e.AnalyzeFont(context.Background(), td.doc, dict)
	// 0xA0 resolves through no base encoding, only the Symbol builtin.
	m := e.deriveToUnicode(context.Background(), td.doc, dict, info, map[uint32]bool{0xA0: true})
	if got := m[0xA0]; len(got) != 1 || got[0] != 0x20AC {
		t.Fatalf("Symbol 0xA0 derived as %U, want U+20AC", got)
	}
}
