package fonts

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/wudi/pdfarchive/ir/raw"
)

func TestSfntHasNotdef(t *testing.T) {
	with := buildTestTrueType(ttOptions{numGlyphs: 3, notdef: true})
	f, err := parseSfnt(with)
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	if !sfntHasNotdef(f) {
		t.Errorf("post 2.0 with glyphNameIndex[0]=0 reported missing")
	}

	without := buildTestTrueType(ttOptions{numGlyphs: 3, notdef: false})
	f, err = parseSfnt(without)
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	if sfntHasNotdef(f) {
		t.Errorf("renamed glyph 0 reported present")
	}

	// Nameless post versions give no evidence either way; assume the
	// standard order.
	b := &fontBuilder{}
	post3 := make([]byte, 32)
	binary.BigEndian.PutUint32(post3, 0x00030000)
	b.addTable("post", post3)
	maxp := make([]byte, 32)
	binary.BigEndian.PutUint16(maxp[4:], 2)
	b.addTable("maxp", maxp)
	f, err = parseSfnt(b.bytes())
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	if !sfntHasNotdef(f) {
		t.Errorf("post 3.0 font should be assumed conforming")
	}
}

func TestInsertNotdefGlyph(t *testing.T) {
	data := buildTestTrueType(ttOptions{
		numGlyphs: 3,
		notdef:    false,
		advances:  []int{555, 600, 700},
		cmap31:    map[uint32]uint16{'A': 1, 'B': 2},
	})
	f, err := parseSfnt(data)
	if err != nil {
		t.Fatalf("parseSfnt: %v", err)
	}
	rebuilt, err := insertNotdefGlyph(f)
	if err != nil {
		t.Fatalf("insertNotdefGlyph: %v", err)
	}
	g, err := parseSfnt(rebuilt)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	if got := g.numGlyphs(); got != 4 {
		t.Fatalf("numGlyphs = %d, want 4", got)
	}
	if !sfntHasNotdef(g) {
		t.Errorf("rebuilt font still reports missing .notdef")
	}

	// New GID 0 is empty, the old glyph 0 moved to GID 1.
	loca, _ := g.table("loca")
	glyf, _ := g.table("glyf")
	if rec := g.glyfEntry(loca, glyf, 0); rec != nil {
		t.Errorf("GID 0 has %d outline bytes, want empty", len(rec))
	}
	rec := g.glyfEntry(loca, glyf, 1)
	if len(rec) != 10 || binary.BigEndian.Uint16(rec[2:4]) != 0 {
		t.Errorf("GID 1 is not the original glyph 0: %v", rec)
	}

	// Metrics shifted with a zero-width slot prepended.
	if adv, ok := g.glyphAdvance(0); !ok || adv != 0 {
		t.Errorf("GID 0 advance = %d, want 0", adv)
	}
	if adv, ok := g.glyphAdvance(1); !ok || adv != 555 {
		t.Errorf("GID 1 advance = %d, want 555", adv)
	}

	// cmap entries follow their glyphs.
	m := unicodeMapping(g)
	if m['A'] != 2 || m['B'] != 3 {
		t.Errorf("cmap after shift: A=%d B=%d, want 2 and 3", m['A'], m['B'])
	}

	// Checksums must still hold after the rebuild.
	if got := sfntChecksum(rebuilt); got != 0xB1B0AFBA {
		t.Errorf("file checksum = %#x after rebuild", got)
	}
}

func TestEnsureNotdefRepairsEmbeddedTrueType(t *testing.T) {
	td := newTestDoc("BT /F1 12 Tf (A) Tj ET")
	program := buildTestTrueType(ttOptions{
		numGlyphs: 2,
		notdef:    false,
		cmap31:    map[uint32]uint16{'A': 1},
	})
	dict := td.simpleFontDict("TrueType", "Broken", "FontFile2", program, 32)
	td.addFont("F1", dict)

	e := newTestEngine()
	ctx := context.Background()
	fixed, err := e.EnsureNotdef(ctx, td.doc)
	if err != nil {
		t.Fatalf("EnsureNotdef: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}

	info := e.AnalyzeFont(ctx, td.doc, dict)
	if !info.Embedded {
		t.Fatalf("font no longer embedded after repair")
	}
	f, err := parseSfnt(info.Program)
	if err != nil {
		t.Fatalf("repaired program unparsable: %v", err)
	}
	if f.numGlyphs() != 3 || !sfntHasNotdef(f) {
		t.Fatalf("repair incomplete: %d glyphs, notdef=%v", f.numGlyphs(), sfntHasNotdef(f))
	}

	// Second pass finds nothing to do.
	fixed, err = e.EnsureNotdef(ctx, td.doc)
	if err != nil || fixed != 0 {
		t.Fatalf("second pass fixed %d, err %v", fixed, err)
	}
}

func TestEnsureNotdefSkipsType3AndNonEmbedded(t *testing.T) {
	td := newTestDoc("")
	type3 := raw.Dict()
	type3.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	type3.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type3"))
	type3.Set(raw.NameLiteral("CharProcs"), raw.Dict())
	td.addFont("F1", type3)
	td.addFont("F2", td.simpleFontDict("TrueType", "Arial", "", nil, 32))

	fixed, err := newTestEngine().EnsureNotdef(context.Background(), td.doc)
	if err != nil || fixed != 0 {
		t.Fatalf("fixed = %d, err %v; want 0, nil", fixed, err)
	}
}

func TestShiftCIDToGIDMapIdentity(t *testing.T) {
	e := newTestEngine()
	td := newTestDoc("")
	desc := raw.Dict()
	desc.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))

	ctx := context.Background()
	if err := e.shiftCIDToGIDMap(ctx, td.doc, desc, 3); err != nil {
		t.Fatalf("shiftCIDToGIDMap: %v", err)
	}
	st, ok := td.doc.DictGetStream(desc, "CIDToGIDMap")
	if !ok {
		t.Fatalf("no CIDToGIDMap stream written")
	}
	data, err := e.filters.DecodeStream(ctx, td.doc, st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{0, 1, 0, 2, 0, 3}
	if string(data) != string(want) {
		t.Fatalf("map data = %v, want %v", data, want)
	}
}

func TestShiftCIDToGIDMapStream(t *testing.T) {
	e := newTestEngine()
	td := newTestDoc("")

	// CID 0 → GID 5, CID 1 unmapped, CID 2 → GID 7.
	orig := []byte{0, 5, 0, 0, 0, 7}
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(orig))))
	ref := td.doc.Add(raw.NewStream(dict, orig))
	desc := raw.Dict()
	desc.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))
	desc.Set(raw.NameLiteral("CIDToGIDMap"), raw.Ref(ref.Num, ref.Gen))

	ctx := context.Background()
	if err := e.shiftCIDToGIDMap(ctx, td.doc, desc, 3); err != nil {
		t.Fatalf("shiftCIDToGIDMap: %v", err)
	}
	st, ok := td.doc.DictGetStream(desc, "CIDToGIDMap")
	if !ok {
		t.Fatalf("no CIDToGIDMap stream written")
	}
	data, err := e.filters.DecodeStream(ctx, td.doc, st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{0, 6, 0, 0, 0, 8}
	if string(data) != string(want) {
		t.Fatalf("map data = %v, want %v", data, want)
	}
}

func TestNamelessPost(t *testing.T) {
	post := make([]byte, 40)
	binary.BigEndian.PutUint32(post[0:], 0x00020000)
	binary.BigEndian.PutUint32(post[4:], 0x00010000) // italicAngle
	out := namelessPost(post)
	if len(out) != 32 {
		t.Fatalf("length = %d, want 32", len(out))
	}
	if binary.BigEndian.Uint32(out[0:]) != 0x00030000 {
		t.Fatalf("version not 3.0")
	}
	if binary.BigEndian.Uint32(out[4:]) != 0x00010000 {
		t.Fatalf("header fields not preserved")
	}
}
