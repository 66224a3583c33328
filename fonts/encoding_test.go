package fonts

import (
	"context"
	"testing"

	"github.com/wudi/pdfarchive/ir/raw"
)

// withCmap rebuilds a font program around a replacement cmap.
func withCmap(t *testing.T, data []byte, records []cmapSubtable) []byte {
	t.Helper()
	f, err := parseSfnt(data)
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	b := &fontBuilder{}
	for tag := range f.tables {
		d, err := f.table(tag)
		if err != nil {
			t.Fatalf("table %s: %v", tag, err)
		}
		b.addTable(tag, d)
	}
	b.addTable("cmap", buildCmapTable(records))
	return b.bytes()
}

func programSubtables(t *testing.T, program []byte) []cmapSubtable {
	t.Helper()
	f, err := parseSfnt(program)
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	cmap, err := f.table("cmap")
	if err != nil {
		t.Fatalf("cmap: %v", err)
	}
	return parseCmapSubtables(cmap)
}

func TestFixNonsymbolicAddsWinAnsiEncoding(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true, cmap31: map[uint32]uint16{'A': 1}})
	dict := td.simpleFontDict("TrueType", "Plain", "FontFile2", program, flagNonsymbolic)
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FixTrueTypeEncodings(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	if enc, ok := td.doc.DictGetName(dict, "Encoding"); !ok || enc != "WinAnsiEncoding" {
		t.Fatalf("Encoding = %q, %v", enc, ok)
	}

	info := e.AnalyzeFont(ctx, td.doc, dict)
	if msg := e.CheckTrueTypeEncoding(ctx, td.doc, dict, info); msg != "" {
		t.Fatalf("still violating after repair: %s", msg)
	}
	if fixed, _ := e.FixTrueTypeEncodings(ctx, td.doc); fixed != 0 {
		t.Fatalf("second pass fixed %d", fixed)
	}
}

func TestFixNonsymbolicKeepsMacRoman(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true, cmap31: map[uint32]uint16{'A': 1}})
	dict := td.simpleFontDict("TrueType", "Plain", "FontFile2", program, flagNonsymbolic)
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("MacRomanEncoding"))
	td.addFont("F1", dict)

	fixed, err := newTestEngine().FixTrueTypeEncodings(context.Background(), td.doc)
	if err != nil || fixed != 0 {
		t.Fatalf("fixed = %d, err %v; MacRoman is already compliant", fixed, err)
	}
}

func TestFixNonsymbolicDropsBadDifferences(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true, cmap31: map[uint32]uint16{'A': 1}})
	dict := td.simpleFontDict("TrueType", "Diffy", "FontFile2", program, flagNonsymbolic)
	enc := raw.Dict()
	enc.Set(raw.NameLiteral("BaseEncoding"), raw.NameLiteral("WinAnsiEncoding"))
	enc.Set(raw.NameLiteral("Differences"), raw.NewArray(
		raw.NumberInt(65), raw.NameLiteral("A"), raw.NameLiteral("g99bogus"),
	))
	dict.Set(raw.NameLiteral("Encoding"), enc)
	td.addFont("F1", dict)

	fixed, err := newTestEngine().FixTrueTypeEncodings(context.Background(), td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	if _, has := enc.Get(raw.NameLiteral("Differences")); has {
		t.Fatalf("Differences with unresolvable names survived")
	}
	if base, _ := td.doc.DictGetName(enc, "BaseEncoding"); base != "WinAnsiEncoding" {
		t.Fatalf("BaseEncoding = %q", base)
	}
}

func TestFixSymbolicRemovesEncodingAndPinsFlags(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true, cmap30: map[uint32]uint16{0xF041: 1}})
	dict := td.simpleFontDict("TrueType", "Sym", "FontFile2", program, flagSymbolic|flagNonsymbolic)
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FixTrueTypeEncodings(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	if _, has := dict.Get(raw.NameLiteral("Encoding")); has {
		t.Fatalf("symbolic font kept its /Encoding")
	}
	info := e.AnalyzeFont(ctx, td.doc, dict)
	if info.Flags&flagNonsymbolic != 0 || info.Flags&flagSymbolic == 0 {
		t.Fatalf("descriptor flags = %#x", info.Flags)
	}
	if msg := e.CheckTrueTypeEncoding(ctx, td.doc, dict, info); msg != "" {
		t.Fatalf("still violating: %s", msg)
	}
}

func TestFixSymbolicSynthesizesSymbolSubtable(t *testing.T) {
	td := newTestDoc("")
	base := buildTestTrueType(ttOptions{notdef: true})
	program := withCmap(t, base, []cmapSubtable{
		{platformID: 1, encodingID: 0, format: 4, data: buildCmapFormat4(map[uint32]uint16{0x41: 1, 0x42: 2})},
		{platformID: 3, encodingID: 1, format: 4, data: buildCmapFormat4(map[uint32]uint16{'A': 1})},
	})
	dict := td.simpleFontDict("TrueType", "Sym", "FontFile2", program, flagSymbolic)
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FixTrueTypeEncodings(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}

	info := e.AnalyzeFont(ctx, td.doc, dict)
	subs := programSubtables(t, info.Program)
	ms := findCmapSubtable(subs, 3, 0)
	if ms == nil {
		t.Fatalf("no (3,0) subtable synthesized")
	}
	m := parseCmapMapping(*ms)
	// Mac Roman source wins: byte codes exposed in the 0xF000 range.
	if m[0xF041] != 1 || m[0xF042] != 2 {
		t.Fatalf("symbol mapping = %v", m)
	}
}

func TestFixNonsymbolicSynthesizesUnicodeSubtable(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true, cmap30: map[uint32]uint16{0xF041: 1, 0x42: 2}})
	dict := td.simpleFontDict("TrueType", "LegacySym", "FontFile2", program, flagNonsymbolic)
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.FixTrueTypeEncodings(ctx, td.doc)
	if err != nil || fixed != 1 {
		t.Fatalf("fixed = %d, err %v", fixed, err)
	}
	info := e.AnalyzeFont(ctx, td.doc, dict)
	subs := programSubtables(t, info.Program)
	win := findCmapSubtable(subs, 3, 1)
	if win == nil {
		t.Fatalf("no (3,1) subtable derived")
	}
	m := parseCmapMapping(*win)
	if m[0x41] != 1 || m[0x42] != 2 {
		t.Fatalf("derived unicode mapping = %v", m)
	}
	// The original symbol subtable stays for symbol-aware viewers.
	if findCmapSubtable(subs, 3, 0) == nil {
		t.Fatalf("(3,0) subtable dropped")
	}
}

func TestCheckTrueTypeEncodingViolations(t *testing.T) {
	td := newTestDoc("")
	program := buildTestTrueType(ttOptions{notdef: true, cmap31: map[uint32]uint16{'A': 1}})
	e := newTestEngine()
	ctx := context.Background()

	noEnc := td.simpleFontDict("TrueType", "NoEnc", "FontFile2", program, flagNonsymbolic)
	if msg := e.CheckTrueTypeEncoding(ctx, td.doc, noEnc, e.AnalyzeFont(ctx, td.doc, noEnc)); msg == "" {
		t.Errorf("missing /Encoding not flagged")
	}

	symEnc := td.simpleFontDict("TrueType", "SymEnc", "FontFile2", program, flagSymbolic)
	symEnc.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	if msg := e.CheckTrueTypeEncoding(ctx, td.doc, symEnc, e.AnalyzeFont(ctx, td.doc, symEnc)); msg == "" {
		t.Errorf("symbolic /Encoding not flagged")
	}

	// Non-embedded fonts are out of scope for this rule.
	bare := td.simpleFontDict("TrueType", "Bare", "", nil, flagNonsymbolic)
	if msg := e.CheckTrueTypeEncoding(ctx, td.doc, bare, e.AnalyzeFont(ctx, td.doc, bare)); msg != "" {
		t.Errorf("non-embedded font flagged: %s", msg)
	}
}
