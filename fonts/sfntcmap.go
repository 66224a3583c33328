package fonts

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// cmapSubtable is one encoding record of a cmap table.
type cmapSubtable struct {
	platformID uint16
	encodingID uint16
	format     uint16
	data       []byte // whole subtable, starting at its format field
}

// parseCmapSubtables splits a cmap table into its encoding records.
// Records whose offsets fall outside the table are skipped.
func parseCmapSubtables(cmap []byte) []cmapSubtable {
	if len(cmap) < 4 {
		return nil
	}
	numTables := int(binary.BigEndian.Uint16(cmap[2:4]))
	var subs []cmapSubtable
	for i := 0; i < numTables; i++ {
		rec := 4 + i*8
		if rec+8 > len(cmap) {
			break
		}
		plat := binary.BigEndian.Uint16(cmap[rec : rec+2])
		enc := binary.BigEndian.Uint16(cmap[rec+2 : rec+4])
		off := binary.BigEndian.Uint32(cmap[rec+4 : rec+8])
		if int(off)+2 > len(cmap) {
			continue
		}
		subs = append(subs, cmapSubtable{
			platformID: plat,
			encodingID: enc,
			format:     binary.BigEndian.Uint16(cmap[off : off+2]),
			data:       cmap[off:],
		})
	}
	return subs
}

func findCmapSubtable(subs []cmapSubtable, plat, enc uint16) *cmapSubtable {
	for i := range subs {
		if subs[i].platformID == plat && subs[i].encodingID == enc {
			return &subs[i]
		}
	}
	return nil
}

// parseCmapMapping decodes a subtable into a code→GID map. Formats 0, 4,
// 6 and 12 are supported; other formats yield an empty map.
func parseCmapMapping(sub cmapSubtable) map[uint32]uint16 {
	m := make(map[uint32]uint16)
	d := sub.data
	switch sub.format {
	case 0:
		if len(d) < 6+256 {
			return m
		}
		for code := 0; code < 256; code++ {
			if gid := d[6+code]; gid != 0 {
				m[uint32(code)] = uint16(gid)
			}
		}
	case 4:
		if len(d) < 14 {
			return m
		}
		segCount := int(binary.BigEndian.Uint16(d[6:8])) / 2
		endBase := 14
		startBase := endBase + segCount*2 + 2
		deltaBase := startBase + segCount*2
		rangeBase := deltaBase + segCount*2
		if rangeBase+segCount*2 > len(d) {
			return m
		}
		for seg := 0; seg < segCount; seg++ {
			end := binary.BigEndian.Uint16(d[endBase+seg*2:])
			start := binary.BigEndian.Uint16(d[startBase+seg*2:])
			delta := binary.BigEndian.Uint16(d[deltaBase+seg*2:])
			rangeOff := binary.BigEndian.Uint16(d[rangeBase+seg*2:])
			if start == 0xFFFF && end == 0xFFFF {
				continue
			}
			for c := uint32(start); c <= uint32(end); c++ {
				var gid uint16
				if rangeOff == 0 {
					gid = uint16(c) + delta
				} else {
					idx := rangeBase + seg*2 + int(rangeOff) + 2*int(c-uint32(start))
					if idx+2 > len(d) {
						continue
					}
					gid = binary.BigEndian.Uint16(d[idx:])
					if gid != 0 {
						gid += delta
					}
				}
				if gid != 0 {
					m[c] = gid
				}
				if c == 0xFFFF {
					break
				}
			}
		}
	case 6:
		if len(d) < 10 {
			return m
		}
		first := uint32(binary.BigEndian.Uint16(d[6:8]))
		count := int(binary.BigEndian.Uint16(d[8:10]))
		for i := 0; i < count; i++ {
			if 10+i*2+2 > len(d) {
				break
			}
			if gid := binary.BigEndian.Uint16(d[10+i*2:]); gid != 0 {
				m[first+uint32(i)] = gid
			}
		}
	case 12:
		if len(d) < 16 {
			return m
		}
		nGroups := int(binary.BigEndian.Uint32(d[12:16]))
		for g := 0; g < nGroups; g++ {
			rec := 16 + g*12
			if rec+12 > len(d) {
				break
			}
			start := binary.BigEndian.Uint32(d[rec : rec+4])
			end := binary.BigEndian.Uint32(d[rec+4 : rec+8])
			gid := binary.BigEndian.Uint32(d[rec+8 : rec+12])
			if end-start > 0x10FFFF {
				continue
			}
			for c := start; c <= end; c++ {
				m[c] = uint16(gid + (c - start))
			}
		}
	}
	return m
}

// unicodeMapping extracts the best available Unicode code point→GID map
// from a font's cmap. Preference order: (3,10) UCS-4, (0,4+), (3,1) BMP,
// (0,x) legacy Unicode.
func unicodeMapping(f *sfntFont) map[rune]uint16 {
	cmap, err := f.table("cmap")
	if err != nil {
		return nil
	}
	subs := parseCmapSubtables(cmap)
	candidates := []*cmapSubtable{
		findCmapSubtable(subs, 3, 10),
		findCmapSubtable(subs, 0, 4),
		findCmapSubtable(subs, 0, 5),
		findCmapSubtable(subs, 0, 6),
		findCmapSubtable(subs, 3, 1),
		findCmapSubtable(subs, 0, 3),
		findCmapSubtable(subs, 0, 0),
	}
	for _, sub := range candidates {
		if sub == nil {
			continue
		}
		raw := parseCmapMapping(*sub)
		if len(raw) == 0 {
			continue
		}
		out := make(map[rune]uint16, len(raw))
		for code, gid := range raw {
			out[rune(code)] = gid
		}
		return out
	}
	return nil
}

// symbolSourceMapping picks the code→GID map used to synthesize missing
// TrueType subtables, in the order simple viewers consult them: the Mac
// Roman (1,0) table first, then Windows Unicode (3,1), then any
// non-empty subtable.
func symbolSourceMapping(subs []cmapSubtable) map[uint32]uint16 {
	if sub := findCmapSubtable(subs, 1, 0); sub != nil {
		if m := parseCmapMapping(*sub); len(m) > 0 {
			return m
		}
	}
	if sub := findCmapSubtable(subs, 3, 1); sub != nil {
		if m := parseCmapMapping(*sub); len(m) > 0 {
			return m
		}
	}
	for _, sub := range subs {
		if m := parseCmapMapping(sub); len(m) > 0 {
			return m
		}
	}
	return nil
}

// buildCmapFormat4 serializes a code→GID map as a format 4 subtable.
// Codes above 0xFFFE are dropped (format 4 is BMP-only and 0xFFFF is the
// sentinel segment).
func buildCmapFormat4(mapping map[uint32]uint16) []byte {
	codes := make([]int, 0, len(mapping))
	for c := range mapping {
		if c < 0xFFFF {
			codes = append(codes, int(c))
		}
	}
	sort.Ints(codes)

	type segment struct {
		start, end uint16
		gids       []uint16
	}
	var segs []segment
	for _, c := range codes {
		gid := mapping[uint32(c)]
		if n := len(segs); n > 0 && int(segs[n-1].end)+1 == c {
			segs[n-1].end = uint16(c)
			segs[n-1].gids = append(segs[n-1].gids, gid)
		} else {
			segs = append(segs, segment{start: uint16(c), end: uint16(c), gids: []uint16{gid}})
		}
	}
	// Sentinel segment.
	segs = append(segs, segment{start: 0xFFFF, end: 0xFFFF, gids: nil})

	segCount := len(segs)
	// Decide delta vs glyph array per segment and lay out the array.
	deltas := make([]uint16, segCount)
	rangeOffsets := make([]uint16, segCount)
	var glyphArray []uint16
	for i, seg := range segs {
		if seg.gids == nil {
			deltas[i] = 1
			continue
		}
		arithmetic := true
		for j, gid := range seg.gids {
			if gid != seg.gids[0]+uint16(j) {
				arithmetic = false
				break
			}
		}
		if arithmetic {
			deltas[i] = seg.gids[0] - seg.start
		} else {
			// Byte distance from this idRangeOffset slot to the segment's
			// glyphs in the trailing array.
			rangeOffsets[i] = uint16(2 * (segCount - i + len(glyphArray)))
			glyphArray = append(glyphArray, seg.gids...)
		}
	}

	length := 16 + segCount*8 + len(glyphArray)*2
	out := make([]byte, length)
	binary.BigEndian.PutUint16(out[0:], 4)
	binary.BigEndian.PutUint16(out[2:], uint16(length))
	binary.BigEndian.PutUint16(out[4:], 0) // language
	binary.BigEndian.PutUint16(out[6:], uint16(segCount*2))
	entrySelector := 0
	for (1 << (entrySelector + 1)) <= segCount {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 2
	binary.BigEndian.PutUint16(out[8:], uint16(searchRange))
	binary.BigEndian.PutUint16(out[10:], uint16(entrySelector))
	binary.BigEndian.PutUint16(out[12:], uint16(segCount*2-searchRange))

	endBase := 14
	startBase := endBase + segCount*2 + 2 // +2 for reservedPad
	deltaBase := startBase + segCount*2
	rangeBase := deltaBase + segCount*2
	arrayBase := rangeBase + segCount*2
	for i, seg := range segs {
		binary.BigEndian.PutUint16(out[endBase+i*2:], seg.end)
		binary.BigEndian.PutUint16(out[startBase+i*2:], seg.start)
		binary.BigEndian.PutUint16(out[deltaBase+i*2:], deltas[i])
		binary.BigEndian.PutUint16(out[rangeBase+i*2:], rangeOffsets[i])
	}
	for i, gid := range glyphArray {
		binary.BigEndian.PutUint16(out[arrayBase+i*2:], gid)
	}
	return out
}

// buildCmapTable assembles a cmap from (platform, encoding, subtable)
// records, sorted by platform then encoding as the format requires.
func buildCmapTable(records []cmapSubtable) []byte {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].platformID != records[j].platformID {
			return records[i].platformID < records[j].platformID
		}
		return records[i].encodingID < records[j].encodingID
	})
	header := 4 + len(records)*8
	out := make([]byte, header)
	binary.BigEndian.PutUint16(out[0:], 0)
	binary.BigEndian.PutUint16(out[2:], uint16(len(records)))
	for i, rec := range records {
		base := 4 + i*8
		binary.BigEndian.PutUint16(out[base:], rec.platformID)
		binary.BigEndian.PutUint16(out[base+2:], rec.encodingID)
		binary.BigEndian.PutUint32(out[base+4:], uint32(len(out)))
		out = append(out, rec.data...)
	}
	// Offsets were written before appends; rewrite them now that the
	// subtable positions are final.
	pos := header
	for i, rec := range records {
		binary.BigEndian.PutUint32(out[4+i*8+4:], uint32(pos))
		pos += len(rec.data)
	}
	return out
}

// synthesizeSymbolSubtable builds a (3,0) format 4 subtable covering the
// font's glyphs in the 0xF000 private range: each byte code c maps to the
// glyph the source mapping assigns to c or to 0xF000|c.
func synthesizeSymbolSubtable(source map[uint32]uint16) []byte {
	mapping := make(map[uint32]uint16)
	for code, gid := range source {
		switch {
		case code <= 0xFF:
			mapping[0xF000|code] = gid
		case code >= 0xF000 && code <= 0xF0FF:
			mapping[code] = gid
		}
	}
	return buildCmapFormat4(mapping)
}

// synthesizeUnicodeSubtable builds a (3,1) format 4 subtable from a
// symbol-encoded source: codes in the 0xF000 private range are exposed at
// their low byte as well, so text using ASCII codes resolves.
func synthesizeUnicodeSubtable(source map[uint32]uint16) []byte {
	mapping := make(map[uint32]uint16)
	for code, gid := range source {
		if code >= 0xF000 && code <= 0xF0FF {
			mapping[code&0xFF] = gid
		} else {
			mapping[code] = gid
		}
	}
	return buildCmapFormat4(mapping)
}

// validateCmapOffsets rejects cmap tables whose record offsets point
// outside the table, which some writers emit after truncation.
func validateCmapOffsets(cmap []byte) error {
	if len(cmap) < 4 {
		return fmt.Errorf("cmap too short")
	}
	n := int(binary.BigEndian.Uint16(cmap[2:4]))
	for i := 0; i < n; i++ {
		rec := 4 + i*8
		if rec+8 > len(cmap) {
			return fmt.Errorf("cmap record %d truncated", i)
		}
		off := binary.BigEndian.Uint32(cmap[rec+4 : rec+8])
		if int(off) >= len(cmap) {
			return fmt.Errorf("cmap record %d offset out of range", i)
		}
	}
	return nil
}
