package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// sfntFont gives table-level access to a TrueType or OpenType font. Table
// offsets are absolute into data, which lets the same representation serve
// standalone fonts and faces inside a TrueType Collection.
type sfntFont struct {
	data   []byte
	tables map[string]sfntTable
}

type sfntTable struct {
	offset uint32
	length uint32
}

// parseSfnt parses the table directory of a standalone font. Collection
// files must go through sfntCollectionOffsets first.
func parseSfnt(data []byte) (*sfntFont, error) {
	if len(data) >= 4 && bytes.Equal(data[:4], []byte("ttcf")) {
		return nil, fmt.Errorf("font is a collection, select a face first")
	}
	return parseSfntAt(data, 0)
}

// parseSfntAt parses the table directory found at off within data.
func parseSfntAt(data []byte, off uint32) (*sfntFont, error) {
	if int(off)+12 > len(data) {
		return nil, fmt.Errorf("truncated sfnt header")
	}
	numTables := int(binary.BigEndian.Uint16(data[off+4 : off+6]))
	f := &sfntFont{data: data, tables: make(map[string]sfntTable, numTables)}

	pos := int(off) + 12
	for i := 0; i < numTables; i++ {
		if pos+16 > len(data) {
			return nil, fmt.Errorf("truncated table directory")
		}
		tag := string(data[pos : pos+4])
		tblOff := binary.BigEndian.Uint32(data[pos+8 : pos+12])
		tblLen := binary.BigEndian.Uint32(data[pos+12 : pos+16])
		f.tables[tag] = sfntTable{offset: tblOff, length: tblLen}
		pos += 16
	}
	return f, nil
}

// sfntCollectionOffsets returns the table directory offsets of each face
// in a TrueType Collection. For non-collection data it returns {0}.
func sfntCollectionOffsets(data []byte) ([]uint32, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte("ttcf")) {
		return []uint32{0}, nil
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("truncated ttc header")
	}
	numFonts := int(binary.BigEndian.Uint32(data[8:12]))
	if numFonts <= 0 || numFonts > 1024 {
		return nil, fmt.Errorf("implausible ttc face count %d", numFonts)
	}
	if 12+4*numFonts > len(data) {
		return nil, fmt.Errorf("truncated ttc face table")
	}
	offsets := make([]uint32, numFonts)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint32(data[12+4*i : 16+4*i])
	}
	return offsets, nil
}

func (f *sfntFont) hasTable(tag string) bool {
	_, ok := f.tables[tag]
	return ok
}

func (f *sfntFont) table(tag string) ([]byte, error) {
	entry, ok := f.tables[tag]
	if !ok {
		return nil, fmt.Errorf("table %s not found", tag)
	}
	if int64(entry.offset)+int64(entry.length) > int64(len(f.data)) {
		return nil, fmt.Errorf("table %s out of bounds", tag)
	}
	return f.data[entry.offset : entry.offset+entry.length], nil
}

func (f *sfntFont) numGlyphs() int {
	maxp, err := f.table("maxp")
	if err != nil || len(maxp) < 6 {
		return 0
	}
	return int(binary.BigEndian.Uint16(maxp[4:6]))
}

func (f *sfntFont) unitsPerEm() int {
	head, err := f.table("head")
	if err != nil || len(head) < 20 {
		return 1000
	}
	u := int(binary.BigEndian.Uint16(head[18:20]))
	if u == 0 {
		return 1000
	}
	return u
}

func (f *sfntFont) indexToLocFormat() int16 {
	head, err := f.table("head")
	if err != nil || len(head) < 52 {
		return 0
	}
	return int16(binary.BigEndian.Uint16(head[50:52]))
}

// glyphAdvance returns the advance width of gid in font units.
func (f *sfntFont) glyphAdvance(gid int) (int, bool) {
	hhea, err := f.table("hhea")
	if err != nil || len(hhea) < 36 {
		return 0, false
	}
	numHM := int(binary.BigEndian.Uint16(hhea[34:36]))
	hmtx, err := f.table("hmtx")
	if err != nil || numHM == 0 {
		return 0, false
	}
	if gid >= numHM {
		gid = numHM - 1
	}
	if gid*4+2 > len(hmtx) {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(hmtx[gid*4 : gid*4+2])), true
}

// fsType returns the OS/2 embedding-restriction bits, or 0 when absent.
func (f *sfntFont) fsType() uint16 {
	os2, err := f.table("OS/2")
	if err != nil || len(os2) < 10 {
		return 0
	}
	return binary.BigEndian.Uint16(os2[8:10])
}

// flatten rebuilds the face as a standalone font file. Used to extract a
// single face from a collection before embedding.
func (f *sfntFont) flatten() ([]byte, error) {
	b := &fontBuilder{}
	tags := make([]string, 0, len(f.tables))
	for tag := range f.tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		data, err := f.table(tag)
		if err != nil {
			return nil, err
		}
		b.addTable(tag, data)
	}
	if f.hasTable("CFF ") {
		b.scaler = scalerCFF
	}
	return b.bytes(), nil
}

// glyfEntry returns the raw glyph record for gid, or nil for an empty
// glyph.
func (f *sfntFont) glyfEntry(loca, glyf []byte, gid int) []byte {
	longFmt := f.indexToLocFormat() != 0
	getLoc := func(i int) uint32 {
		if longFmt {
			if i*4+4 > len(loca) {
				return 0
			}
			return binary.BigEndian.Uint32(loca[i*4:])
		}
		if i*2+2 > len(loca) {
			return 0
		}
		return uint32(binary.BigEndian.Uint16(loca[i*2:])) * 2
	}
	start, end := getLoc(gid), getLoc(gid+1)
	if start >= end || int(end) > len(glyf) {
		return nil
	}
	return glyf[start:end]
}

// hasArabicScript reports whether GSUB carries rules for Arabic; glyph
// removal would break required shaping there.
func (f *sfntFont) hasArabicScript() bool {
	data, err := f.table("GSUB")
	if err != nil || len(data) < 10 {
		return false
	}
	scriptListOffset := binary.BigEndian.Uint16(data[4:6])
	if int(scriptListOffset) >= len(data) {
		return false
	}
	listData := data[scriptListOffset:]
	if len(listData) < 2 {
		return false
	}
	scriptCount := int(binary.BigEndian.Uint16(listData[0:2]))
	pos := 2
	for i := 0; i < scriptCount; i++ {
		if pos+6 > len(listData) {
			break
		}
		if string(listData[pos:pos+4]) == "arab" {
			return true
		}
		pos += 6
	}
	return false
}

type scalerType uint32

const (
	scalerTrueType scalerType = 0x00010000
	scalerCFF      scalerType = 0x4F54544F // 'OTTO'
)

// fontBuilder assembles an sfnt file from tables, computing directory
// checksums and the head checksum adjustment.
type fontBuilder struct {
	scaler scalerType
	tables []builderTable
}

type builderTable struct {
	tag  string
	data []byte
}

func (b *fontBuilder) addTable(tag string, data []byte) {
	for i := range b.tables {
		if b.tables[i].tag == tag {
			b.tables[i].data = data
			return
		}
	}
	b.tables = append(b.tables, builderTable{tag, data})
}

func (b *fontBuilder) bytes() []byte {
	sort.Slice(b.tables, func(i, j int) bool { return b.tables[i].tag < b.tables[j].tag })

	numTables := len(b.tables)
	offset := 12 + 16*numTables

	scaler := b.scaler
	if scaler == 0 {
		scaler = scalerTrueType
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(scaler))
	binary.Write(&buf, binary.BigEndian, uint16(numTables))

	entrySelector := 0
	for (1 << (entrySelector + 1)) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16
	rangeShift := numTables*16 - searchRange
	binary.Write(&buf, binary.BigEndian, uint16(searchRange))
	binary.Write(&buf, binary.BigEndian, uint16(entrySelector))
	binary.Write(&buf, binary.BigEndian, uint16(rangeShift))

	for _, t := range b.tables {
		padding := (4 - (len(t.data) % 4)) % 4
		buf.WriteString(t.tag)
		binary.Write(&buf, binary.BigEndian, sfntChecksum(t.data))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(t.data)))
		offset += len(t.data) + padding
	}

	tableOffsets := make(map[string]int, numTables)
	for _, t := range b.tables {
		tableOffsets[t.tag] = buf.Len()
		buf.Write(t.data)
		for k := (4 - (len(t.data) % 4)) % 4; k > 0; k-- {
			buf.WriteByte(0)
		}
	}

	out := buf.Bytes()

	// Recompute the whole-file checksum adjustment stored in head.
	if off, ok := tableOffsets["head"]; ok && off+12 <= len(out) {
		out[off+8], out[off+9], out[off+10], out[off+11] = 0, 0, 0, 0
		for i, t := range b.tables {
			if t.tag != "head" {
				continue
			}
			dirOffset := 12 + 16*i
			length := binary.BigEndian.Uint32(out[dirOffset+12 : dirOffset+16])
			paddedLen := (length + 3) &^ 3
			binary.BigEndian.PutUint32(out[dirOffset+4:], sfntChecksum(out[off:uint32(off)+paddedLen]))
			break
		}
		adjustment := 0xB1B0AFBA - sfntChecksum(out)
		binary.BigEndian.PutUint32(out[off+8:], adjustment)
	}

	return out
}

func sfntChecksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		if i+4 <= len(data) {
			sum += binary.BigEndian.Uint32(data[i : i+4])
		} else {
			var tail [4]byte
			copy(tail[:], data[i:])
			sum += binary.BigEndian.Uint32(tail[:])
		}
	}
	return sum
}
