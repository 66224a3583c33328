package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SubsetTrueType removes unused glyph outlines from a TrueType font while
// preserving glyph IDs, so Identity-H CID text keeps working. Composite
// glyph components and GSUB substitution targets are retained. Fonts with
// Arabic shaping rules, and fonts that are not glyf-based, are returned
// unchanged.
func SubsetTrueType(data []byte, usedGIDs map[int]bool) ([]byte, error) {
	f, err := parseSfnt(data)
	if err != nil {
		return nil, err
	}
	for _, tag := range []string{"glyf", "loca", "head", "maxp", "hmtx", "hhea"} {
		if !f.hasTable(tag) {
			return data, nil
		}
	}
	if f.hasArabicScript() {
		return data, nil
	}

	numGlyphs := f.numGlyphs()

	keep := make(map[int]bool, len(usedGIDs)+1)
	keep[0] = true
	for gid := range usedGIDs {
		if gid >= 0 && gid < numGlyphs {
			keep[gid] = true
		}
	}

	if f.hasTable("GSUB") {
		expanded, err := gsubClosure(data, keep)
		if err == nil {
			keep = expanded
		}
	}
	if err := f.addCompositeComponents(keep, numGlyphs); err != nil {
		return nil, fmt.Errorf("composite closure: %w", err)
	}

	maxKept := 0
	for gid := range keep {
		if gid > maxKept {
			maxKept = gid
		}
	}
	newNumGlyphs := maxKept + 1
	if newNumGlyphs > numGlyphs {
		newNumGlyphs = numGlyphs
	}

	newGlyf, newLoca, err := f.rebuildGlyfLoca(keep, newNumGlyphs)
	if err != nil {
		return nil, err
	}
	newHmtx, err := f.rebuildHmtx(newNumGlyphs)
	if err != nil {
		return nil, err
	}

	maxp, err := f.table("maxp")
	if err != nil {
		return nil, err
	}
	newMaxp := append([]byte(nil), maxp...)
	binary.BigEndian.PutUint16(newMaxp[4:], uint16(newNumGlyphs))

	head, err := f.table("head")
	if err != nil {
		return nil, err
	}
	newHead := append([]byte(nil), head...)
	if len(newHead) >= 52 {
		// Rebuilt loca always uses the long format.
		binary.BigEndian.PutUint16(newHead[50:], 1)
	}

	b := &fontBuilder{}
	b.addTable("glyf", newGlyf)
	b.addTable("loca", newLoca)
	b.addTable("hmtx", newHmtx)
	b.addTable("maxp", newMaxp)
	b.addTable("head", newHead)

	for _, tag := range []string{"hhea", "cmap", "name", "OS/2", "post", "cvt ", "fpgm", "prep", "GSUB", "GPOS", "GDEF", "gasp"} {
		if !f.hasTable(tag) {
			continue
		}
		tbl, err := f.table(tag)
		if err != nil {
			return nil, err
		}
		if tag == "hhea" && len(tbl) >= 36 {
			patched := append([]byte(nil), tbl...)
			// hmtx was rebuilt with an explicit metric per glyph.
			binary.BigEndian.PutUint16(patched[34:], uint16(newNumGlyphs))
			tbl = patched
		}
		b.addTable(tag, tbl)
	}

	return b.bytes(), nil
}

// addCompositeComponents extends keep with every glyph referenced as a
// component of a kept composite glyph, transitively.
func (f *sfntFont) addCompositeComponents(keep map[int]bool, numGlyphs int) error {
	loca, err := f.table("loca")
	if err != nil {
		return err
	}
	glyf, err := f.table("glyf")
	if err != nil {
		return err
	}

	queue := make([]int, 0, len(keep))
	for gid := range keep {
		queue = append(queue, gid)
	}

	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		if gid >= numGlyphs {
			continue
		}
		entry := f.glyfEntry(loca, glyf, gid)
		if len(entry) < 10 {
			continue
		}
		numContours := int16(binary.BigEndian.Uint16(entry[0:2]))
		if numContours >= 0 {
			continue
		}
		pos := 10
		for {
			if pos+4 > len(entry) {
				break
			}
			flags := binary.BigEndian.Uint16(entry[pos : pos+2])
			component := int(binary.BigEndian.Uint16(entry[pos+2 : pos+4]))
			if !keep[component] {
				keep[component] = true
				queue = append(queue, component)
			}
			pos += 4
			if flags&0x0001 != 0 { // ARG_1_AND_2_ARE_WORDS
				pos += 4
			} else {
				pos += 2
			}
			switch {
			case flags&0x0008 != 0: // WE_HAVE_A_SCALE
				pos += 2
			case flags&0x0040 != 0: // WE_HAVE_AN_X_AND_Y_SCALE
				pos += 4
			case flags&0x0080 != 0: // WE_HAVE_A_TWO_BY_TWO
				pos += 8
			}
			if flags&0x0020 == 0 { // MORE_COMPONENTS
				break
			}
		}
	}
	return nil
}

// rebuildGlyfLoca writes a glyf table holding only kept glyph records and
// a matching long-format loca.
func (f *sfntFont) rebuildGlyfLoca(keep map[int]bool, numGlyphs int) ([]byte, []byte, error) {
	loca, err := f.table("loca")
	if err != nil {
		return nil, nil, err
	}
	glyf, err := f.table("glyf")
	if err != nil {
		return nil, nil, err
	}

	var newGlyf bytes.Buffer
	newLoca := make([]byte, (numGlyphs+1)*4)
	for gid := 0; gid < numGlyphs; gid++ {
		binary.BigEndian.PutUint32(newLoca[gid*4:], uint32(newGlyf.Len()))
		if keep[gid] {
			newGlyf.Write(f.glyfEntry(loca, glyf, gid))
		}
	}
	binary.BigEndian.PutUint32(newLoca[numGlyphs*4:], uint32(newGlyf.Len()))
	return newGlyf.Bytes(), newLoca, nil
}

// rebuildHmtx emits one explicit (advance, lsb) pair per glyph.
func (f *sfntFont) rebuildHmtx(numGlyphs int) ([]byte, error) {
	hhea, err := f.table("hhea")
	if err != nil || len(hhea) < 36 {
		return nil, fmt.Errorf("hhea unavailable")
	}
	numHM := int(binary.BigEndian.Uint16(hhea[34:36]))
	hmtx, err := f.table("hmtx")
	if err != nil {
		return nil, err
	}
	if numHM == 0 {
		return nil, fmt.Errorf("hhea reports zero metrics")
	}

	readMetric := func(gid int) (uint16, int16) {
		if gid < numHM {
			if gid*4+4 > len(hmtx) {
				return 0, 0
			}
			return binary.BigEndian.Uint16(hmtx[gid*4:]), int16(binary.BigEndian.Uint16(hmtx[gid*4+2:]))
		}
		var adv uint16
		if numHM*4 <= len(hmtx) {
			adv = binary.BigEndian.Uint16(hmtx[(numHM-1)*4:])
		}
		lsbOff := numHM*4 + (gid-numHM)*2
		if lsbOff+2 > len(hmtx) {
			return adv, 0
		}
		return adv, int16(binary.BigEndian.Uint16(hmtx[lsbOff:]))
	}

	out := make([]byte, numGlyphs*4)
	for gid := 0; gid < numGlyphs; gid++ {
		adv, lsb := readMetric(gid)
		binary.BigEndian.PutUint16(out[gid*4:], adv)
		binary.BigEndian.PutUint16(out[gid*4+2:], uint16(lsb))
	}
	return out, nil
}
