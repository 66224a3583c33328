package fonts

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Every embedded font program must define a .notdef glyph (ISO 19005-2,
// 6.3.3). For glyf-based programs a missing .notdef is repaired by
// inserting an empty glyph at GID 0, which shifts every other glyph up
// by one; CID fonts then need their CIDToGIDMap rewritten to match.

// EnsureNotdef checks every embedded font program in the document and
// inserts a .notdef glyph where one is missing. It returns the number
// of programs modified.
func (e *Engine) EnsureNotdef(ctx context.Context, doc *raw.Document) (int, error) {
	fixed := 0
	for _, fr := range CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		info := e.AnalyzeFont(ctx, doc, fr.Dict)
		if info.Kind == KindType3 || !info.Embedded {
			continue
		}
		var changed bool
		var err error
		switch {
		case isSfntSignature(info.Program):
			changed, err = e.ensureNotdefSfnt(ctx, doc, info)
		case info.FontFileKey == "FontFile3":
			changed, err = e.ensureNotdefCFF(ctx, doc, info)
		case info.FontFileKey == "FontFile":
			changed, err = e.ensureNotdefType1(ctx, doc, info)
		}
		if err != nil {
			e.log.Warn("notdef repair failed", fieldStr("font", info.BaseFont), fieldErr(err))
			continue
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}

// ensureNotdefSfnt repairs a glyf-based program whose first glyph is not
// .notdef.
func (e *Engine) ensureNotdefSfnt(ctx context.Context, doc *raw.Document, info *FontInfo) (bool, error) {
	f, err := parseSfnt(info.Program)
	if err != nil {
		return false, err
	}
	if !f.hasTable("glyf") {
		// CFF outlines inside an OpenType shell.
		return e.ensureNotdefCFF(ctx, doc, info)
	}
	if sfntHasNotdef(f) {
		return false, nil
	}

	originalGlyphs := f.numGlyphs()
	rebuilt, err := insertNotdefGlyph(f)
	if err != nil {
		return false, err
	}
	if err := e.replaceFontProgram(ctx, doc, info, rebuilt); err != nil {
		return false, err
	}
	e.log.Info("inserted .notdef glyph", fieldStr("font", info.BaseFont),
		fieldInt("glyphs", originalGlyphs))

	if info.DescendantSubtype == "CIDFontType2" && info.Descendant != nil {
		if err := e.shiftCIDToGIDMap(ctx, doc, info.Descendant, originalGlyphs); err != nil {
			return true, fmt.Errorf("rewrite CIDToGIDMap: %w", err)
		}
	}
	return true, nil
}

// sfntHasNotdef reports whether glyph 0 is .notdef. Glyph names come
// from a version 2.0 post table; fonts without glyph names are assumed
// conforming, since in the standard glyph orders GID 0 is .notdef.
func sfntHasNotdef(f *sfntFont) bool {
	if f.numGlyphs() == 0 {
		return false
	}
	post, err := f.table("post")
	if err != nil || len(post) < 34 {
		return true
	}
	version := binary.BigEndian.Uint32(post[0:4])
	if version != 0x00020000 {
		return true
	}
	// post 2.0: glyphNameIndex[0] == 0 means the standard ".notdef".
	return binary.BigEndian.Uint16(post[34:36]) == 0
}

// insertNotdefGlyph rebuilds the font with an empty glyph prepended at
// GID 0. hmtx gains a zero-width metric for the new glyph, post is
// replaced with a nameless version 3.0 table, and every cmap subtable
// is re-synthesized with GIDs shifted by one.
func insertNotdefGlyph(f *sfntFont) ([]byte, error) {
	for _, tag := range []string{"glyf", "loca", "head", "maxp", "hmtx", "hhea"} {
		if !f.hasTable(tag) {
			return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, tag)
		}
	}
	numGlyphs := f.numGlyphs()
	loca, err := f.table("loca")
	if err != nil {
		return nil, err
	}
	glyf, err := f.table("glyf")
	if err != nil {
		return nil, err
	}

	// glyf/loca: empty entry at 0, everything else shifted.
	newLoca := make([]byte, (numGlyphs+2)*4)
	var newGlyf []byte
	binary.BigEndian.PutUint32(newLoca[0:], 0)
	for gid := 0; gid < numGlyphs; gid++ {
		binary.BigEndian.PutUint32(newLoca[(gid+1)*4:], uint32(len(newGlyf)))
		newGlyf = append(newGlyf, f.glyfEntry(loca, glyf, gid)...)
	}
	binary.BigEndian.PutUint32(newLoca[(numGlyphs+1)*4:], uint32(len(newGlyf)))

	// hmtx via the explicit-metrics rebuild; the new glyph gets (0,0).
	oldHmtx, err := f.rebuildHmtx(numGlyphs)
	if err != nil {
		return nil, err
	}
	newHmtx := make([]byte, (numGlyphs+1)*4)
	copy(newHmtx[4:], oldHmtx)

	maxp, err := f.table("maxp")
	if err != nil {
		return nil, err
	}
	newMaxp := append([]byte(nil), maxp...)
	binary.BigEndian.PutUint16(newMaxp[4:], uint16(numGlyphs+1))

	head, err := f.table("head")
	if err != nil {
		return nil, err
	}
	newHead := append([]byte(nil), head...)
	if len(newHead) >= 52 {
		binary.BigEndian.PutUint16(newHead[50:], 1)
	}

	hhea, err := f.table("hhea")
	if err != nil {
		return nil, err
	}
	newHhea := append([]byte(nil), hhea...)
	if len(newHhea) >= 36 {
		binary.BigEndian.PutUint16(newHhea[34:], uint16(numGlyphs+1))
	}

	b := &fontBuilder{}
	b.addTable("glyf", newGlyf)
	b.addTable("loca", newLoca)
	b.addTable("hmtx", newHmtx)
	b.addTable("maxp", newMaxp)
	b.addTable("head", newHead)
	b.addTable("hhea", newHhea)

	if post, err := f.table("post"); err == nil {
		b.addTable("post", namelessPost(post))
	}
	if cmap, err := f.table("cmap"); err == nil {
		b.addTable("cmap", shiftCmapGIDs(cmap))
	}
	for _, tag := range []string{"name", "OS/2", "cvt ", "fpgm", "prep", "gasp"} {
		if f.hasTable(tag) {
			data, err := f.table(tag)
			if err != nil {
				return nil, err
			}
			b.addTable(tag, data)
		}
	}
	// GSUB/GPOS/GDEF reference GIDs that all moved; dropping them loses
	// optional typography but keeps rendering correct.
	return b.bytes(), nil
}

// ensureNotdefCFF repairs a CFF program, bare or inside an OpenType
// shell, whose glyph 0 is missing or not .notdef. Insertion shifts all
// GIDs by one, so CIDFontType2 descendants get the same CIDToGIDMap
// rewrite as glyf programs; CID-keyed CFF needs none, its charset
// carries the CIDs and shifts with the glyphs.
func (e *Engine) ensureNotdefCFF(ctx context.Context, doc *raw.Document, info *FontInfo) (bool, error) {
	cffData := info.Program
	var shell *sfntFont
	if isSfntSignature(info.Program) {
		f, err := parseSfnt(info.Program)
		if err != nil {
			return false, err
		}
		if cffData, err = f.table("CFF "); err != nil {
			return false, fmt.Errorf("%w: OpenType font without outlines", ErrUnsupportedFormat)
		}
		shell = f
	}

	c, err := parseCFFFont(cffData)
	if err != nil {
		return false, err
	}
	if c.hasNotdef() {
		return false, nil
	}
	originalGlyphs := c.glyphCount()
	c.insertNotdef()
	rebuilt, err := c.serialize()
	if err != nil {
		return false, err
	}

	program := rebuilt
	if shell != nil {
		b := &fontBuilder{scaler: scalerCFF}
		for tag := range shell.tables {
			data, err := shell.table(tag)
			if err != nil {
				return false, err
			}
			b.addTable(tag, data)
		}
		b.addTable("CFF ", rebuilt)
		program = b.bytes()
	}
	if err := e.replaceFontProgram(ctx, doc, info, program); err != nil {
		return false, err
	}
	e.log.Info("inserted .notdef charstring", fieldStr("font", info.BaseFont),
		fieldInt("glyphs", originalGlyphs))

	if info.DescendantSubtype == "CIDFontType2" && info.Descendant != nil {
		if err := e.shiftCIDToGIDMap(ctx, doc, info.Descendant, originalGlyphs); err != nil {
			return true, fmt.Errorf("rewrite CIDToGIDMap: %w", err)
		}
	}
	return true, nil
}

// namelessPost converts a post table to version 3.0, keeping the header
// fields. Glyph name indexes would all be off by one after insertion.
func namelessPost(post []byte) []byte {
	out := make([]byte, 32)
	copy(out, post)
	binary.BigEndian.PutUint32(out[0:], 0x00030000)
	return out
}

// shiftCmapGIDs rebuilds every parsable cmap subtable with each GID
// incremented by one.
func shiftCmapGIDs(cmap []byte) []byte {
	subs := parseCmapSubtables(cmap)
	var records []cmapSubtable
	for _, sub := range subs {
		mapping := parseCmapMapping(sub)
		if len(mapping) == 0 {
			continue
		}
		shifted := make(map[uint32]uint16, len(mapping))
		for code, gid := range mapping {
			if gid < 0xFFFF {
				shifted[code] = gid + 1
			}
		}
		records = append(records, cmapSubtable{
			platformID: sub.platformID,
			encodingID: sub.encodingID,
			format:     4,
			data:       buildCmapFormat4(shifted),
		})
	}
	if len(records) == 0 {
		return cmap
	}
	return buildCmapTable(records)
}

// shiftCIDToGIDMap rewrites a CIDFontType2 descendant's /CIDToGIDMap
// after GID insertion: /Identity (or an absent entry) is promoted to an
// explicit stream mapping CID i to GID i+1, sized to the original glyph
// count; an existing stream has each entry incremented. Entries that
// would exceed 0xFFFF are clamped with a warning.
func (e *Engine) shiftCIDToGIDMap(ctx context.Context, doc *raw.Document, descendant raw.Dictionary, originalGlyphs int) error {
	entry := doc.DictGet(descendant, "CIDToGIDMap")

	clamped := false
	var mapData []byte
	switch v := entry.(type) {
	case raw.Stream:
		data, err := e.filters.DecodeStream(ctx, doc, v)
		if err != nil {
			return fmt.Errorf("decode CIDToGIDMap: %w", err)
		}
		mapData = make([]byte, len(data)&^1)
		for i := 0; i+1 < len(data); i += 2 {
			gid := uint32(data[i])<<8 | uint32(data[i+1])
			if gid == 0 {
				// Unmapped CIDs stay pointed at .notdef.
				continue
			}
			gid++
			if gid > 0xFFFF {
				gid = 0xFFFF
				clamped = true
			}
			binary.BigEndian.PutUint16(mapData[i:], uint16(gid))
		}
	default:
		// Identity, by name or by omission.
		mapData = make([]byte, originalGlyphs*2)
		for cid := 0; cid < originalGlyphs; cid++ {
			gid := uint32(cid) + 1
			if gid > 0xFFFF {
				gid = 0xFFFF
				clamped = true
			}
			binary.BigEndian.PutUint16(mapData[cid*2:], uint16(gid))
		}
	}
	if clamped {
		e.log.Warn("CIDToGIDMap entries clamped to 0xFFFF")
	}

	ref, err := e.addStream(ctx, doc, mapData)
	if err != nil {
		return err
	}
	descendant.Set(raw.NameLiteral("CIDToGIDMap"), raw.Ref(ref.Num, ref.Gen))
	return nil
}
