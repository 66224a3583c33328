package fonts

import (
	"context"
	"testing"

	"github.com/wudi/pdfarchive/ir/raw"
)

func TestCidWidth1000(t *testing.T) {
	doc := raw.NewDocument()
	desc := raw.Dict()
	// /W [ 1 [500 600] 10 20 777 ]
	desc.Set(raw.NameLiteral("W"), raw.NewArray(
		raw.NumberInt(1), raw.NewArray(raw.NumberInt(500), raw.NumberInt(600)),
		raw.NumberInt(10), raw.NumberInt(20), raw.NumberInt(777),
	))
	desc.Set(raw.NameLiteral("DW"), raw.NumberInt(888))

	cases := []struct{ cid, want int }{
		{1, 500},
		{2, 600},
		{3, 888},  // past the list, falls to DW
		{10, 777}, // range start
		{15, 777},
		{20, 777}, // range end
		{21, 888},
	}
	for _, c := range cases {
		if got := cidWidth1000(doc, desc, c.cid); got != c.want {
			t.Errorf("cidWidth1000(%d) = %d, want %d", c.cid, got, c.want)
		}
	}

	bare := raw.Dict()
	if got := cidWidth1000(doc, bare, 5); got != 1000 {
		t.Errorf("no W, no DW: %d, want 1000", got)
	}
	if got := cidWidth1000(doc, nil, 5); got != 1000 {
		t.Errorf("nil descendant: %d, want 1000", got)
	}
}

func TestDifferencesMap(t *testing.T) {
	td := newTestDoc("")
	enc := raw.Dict()
	enc.Set(raw.NameLiteral("Differences"), raw.NewArray(
		raw.NumberInt(65), raw.NameLiteral("alpha"), raw.NameLiteral("beta"),
		raw.NumberInt(200), raw.NameLiteral("gamma"),
	))
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Encoding"), enc)

	m := differencesMap(td.doc, dict)
	if m[65] != "alpha" || m[66] != "beta" || m[200] != "gamma" || len(m) != 3 {
		t.Fatalf("differences = %v", m)
	}
}

func TestAppendEmptyGlyphsSfnt(t *testing.T) {
	data := buildTestTrueType(ttOptions{numGlyphs: 3, notdef: true, advances: []int{0, 500, 500}})
	f, err := parseSfnt(data)
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	rebuilt, err := appendEmptyGlyphsSfnt(f, map[int]int{3: 250, 4: 0})
	if err != nil {
		t.Fatalf("appendEmptyGlyphsSfnt: %v", err)
	}
	g, err := parseSfnt(rebuilt)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if g.numGlyphs() != 5 {
		t.Fatalf("numGlyphs = %d, want 5", g.numGlyphs())
	}
	if adv, ok := g.glyphAdvance(3); !ok || adv != 250 {
		t.Errorf("new glyph advance = %d, want 250", adv)
	}
	// New glyphs are empty, existing outlines untouched.
	loca, _ := g.table("loca")
	glyf, _ := g.table("glyf")
	if rec := g.glyfEntry(loca, glyf, 3); rec != nil {
		t.Errorf("appended glyph has %d outline bytes", len(rec))
	}
	if rec := g.glyfEntry(loca, glyf, 2); len(rec) != 10 {
		t.Errorf("existing glyph lost: %d bytes", len(rec))
	}

	// Gaps and already-present GIDs are rejected.
	if _, err := appendEmptyGlyphsSfnt(f, map[int]int{4: 0}); err == nil {
		t.Errorf("gid gap accepted")
	}
	if _, err := appendEmptyGlyphsSfnt(f, map[int]int{1: 0}); err == nil {
		t.Errorf("existing gid accepted")
	}
}

func TestEnsureGlyphCoverageSimpleTrueType(t *testing.T) {
	// 'A' has a glyph, 'B' does not; the font declares widths for both.
	td := newTestDoc("BT /F1 12 Tf (AB) Tj ET")
	program := buildTestTrueType(ttOptions{
		numGlyphs: 2,
		notdef:    true,
		cmap31:    map[uint32]uint16{'A': 1},
	})
	dict := td.simpleFontDict("TrueType", "Gappy", "FontFile2", program, flagNonsymbolic)
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	dict.Set(raw.NameLiteral("FirstChar"), raw.NumberInt(65))
	dict.Set(raw.NameLiteral("LastChar"), raw.NumberInt(66))
	dict.Set(raw.NameLiteral("Widths"), raw.NewArray(raw.NumberInt(500), raw.NumberInt(640)))
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.EnsureGlyphCoverage(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}

	info := e.AnalyzeFont(ctx, td.doc, dict)
	f, err := parseSfnt(info.Program)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if f.numGlyphs() != 3 {
		t.Fatalf("numGlyphs = %d, want 3", f.numGlyphs())
	}
	m := unicodeMapping(f)
	if m['B'] != 2 {
		t.Fatalf("cmap['B'] = %d, want the appended glyph", m['B'])
	}
	// Width taken from /Widths, em is 1000 units so it carries through.
	if adv, ok := f.glyphAdvance(2); !ok || adv != 640 {
		t.Fatalf("appended advance = %d, want 640", adv)
	}

	if fixed, _ := e.EnsureGlyphCoverage(ctx, td.doc); fixed != 0 {
		t.Fatalf("second pass fixed %d", fixed)
	}
}

func TestEnsureGlyphCoverageCIDType2(t *testing.T) {
	// Identity mapping; the content uses CID 4 but the program stops at
	// glyph 2.
	td := newTestDoc("BT /F1 12 Tf <0004> Tj ET")
	program := buildTestTrueType(ttOptions{numGlyphs: 3, notdef: true})
	dict, cid := td.type0FontDict("CJKGap", "CIDFontType2", "FontFile2", program)
	cid.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	cid.Set(raw.NameLiteral("W"), raw.NewArray(
		raw.NumberInt(4), raw.NewArray(raw.NumberInt(750)),
	))
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.EnsureGlyphCoverage(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}

	info := e.AnalyzeFont(ctx, td.doc, dict)
	f, err := parseSfnt(info.Program)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	// Contiguous fill up to GID 4.
	if f.numGlyphs() != 5 {
		t.Fatalf("numGlyphs = %d, want 5", f.numGlyphs())
	}
	if adv, ok := f.glyphAdvance(4); !ok || adv != 750 {
		t.Fatalf("CID 4 advance = %d, want 750 from /W", adv)
	}
	if adv, _ := f.glyphAdvance(3); adv != 0 {
		t.Fatalf("filler glyph advance = %d, want 0", adv)
	}
}

func TestEnsureGlyphCoverageCountsMissingGlyphs(t *testing.T) {
	// Two glyphs in the program, content drawing CIDs 3, 5 and 7: three
	// repairs reported, even though the contiguous fill also appends
	// filler glyphs for GIDs 2, 4 and 6.
	td := newTestDoc("BT /F1 12 Tf <000300050007> Tj ET")
	program := buildTestTrueType(ttOptions{numGlyphs: 2, notdef: true})
	dict, cid := td.type0FontDict("SparseCJK", "CIDFontType2", "FontFile2", program)
	cid.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.EnsureGlyphCoverage(ctx, td.doc)
	if err != nil || fixed != 3 {
		t.Fatalf("fixed = %d, err %v; want the three referenced glyphs", fixed, err)
	}

	info := e.AnalyzeFont(ctx, td.doc, dict)
	f, err := parseSfnt(info.Program)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if f.numGlyphs() != 8 {
		t.Fatalf("numGlyphs = %d, want contiguous fill up to GID 7", f.numGlyphs())
	}
}

func TestEnsureGlyphCoverageSkipsCoveredFonts(t *testing.T) {
	td := newTestDoc("BT /F1 12 Tf (A) Tj ET")
	program := buildTestTrueType(ttOptions{
		numGlyphs: 2,
		notdef:    true,
		cmap31:    map[uint32]uint16{'A': 1},
	})
	dict := td.simpleFontDict("TrueType", "Covered", "FontFile2", program, flagNonsymbolic)
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	td.addFont("F1", dict)

	fixed, err := newTestEngine().EnsureGlyphCoverage(context.Background(), td.doc)
	if err != nil || fixed != 0 {
		t.Fatalf("fixed = %d, err %v; nothing was missing", fixed, err)
	}
}
