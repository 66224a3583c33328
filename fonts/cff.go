package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Compact Font Format parsing and rebuilding. Repairs that change the
// glyph set (inserting .notdef, appending empty glyphs) have to rewrite
// the whole file, because the Top DICT stores absolute offsets to the
// charset, encoding, CharStrings and Private sections. The serializer
// re-emits those offsets with fixed-width integer operands so section
// sizes are known before the offsets are.

// Top DICT / Private DICT operators the rebuild has to patch or read.
const (
	cffOpCharstringType = 1206
	cffOpROS            = 1230
	cffOpFDArray        = 1236
	cffOpFDSelect       = 1237
	cffOpCharset        = 15
	cffOpEncoding       = 16
	cffOpCharStrings    = 17
	cffOpPrivate        = 18
	cffOpSubrs          = 19
	cffOpDefaultWidthX  = 20
	cffOpNominalWidthX  = 21
)

// cffOperand is a decoded DICT operand.
type cffOperand struct {
	Int   int
	Float float64
	IsInt bool
}

func (o cffOperand) value() float64 {
	if o.IsInt {
		return float64(o.Int)
	}
	return o.Float
}

// cffDictEntry keeps the decoded operands of one DICT entry together
// with their original encoding, so untouched entries round-trip exactly.
type cffDictEntry struct {
	op       int
	operands []cffOperand
	raw      []byte
}

type cffDict []cffDictEntry

func (d cffDict) get(op int) ([]cffOperand, bool) {
	for _, e := range d {
		if e.op == op {
			return e.operands, true
		}
	}
	return nil, false
}

func (d cffDict) intOperand(op int, idx int) (int, bool) {
	ops, ok := d.get(op)
	if !ok || idx >= len(ops) {
		return 0, false
	}
	return int(ops[idx].value()), true
}

// cffFD is one Font DICT of a CID-keyed font with its Private DICT.
type cffFD struct {
	dict       cffDict
	private    cffDict
	localSubrs []byte // raw Subr INDEX, nil when absent
}

// cffFont is a fully decomposed CFF file.
type cffFont struct {
	header      []byte
	names       [][]byte
	topDict     cffDict
	strings     [][]byte
	globalSubrs [][]byte
	charStrings [][]byte

	// charsetIDs holds one SID (or CID for CID-keyed fonts) per glyph,
	// including the implicit 0 for glyph 0.
	charsetIDs []uint16

	// Custom encoding, nil when the font uses a predefined one. codes
	// holds one code per glyph starting at glyph 1; supplement keeps the
	// raw trailing supplement bytes, which are glyph-order independent.
	encodingCodes      []byte
	encodingSupplement []byte
	predefEncoding     int

	isCID    bool
	fdArray  []cffFD
	fdSelect []uint8 // per glyph, CID fonts only

	private    cffDict
	localSubrs []byte
}

// parseCFFFont decomposes a bare CFF file into rebuildable sections.
func parseCFFFont(data []byte) (*cffFont, error) {
	if !isCFFSignature(data) {
		return nil, fmt.Errorf("%w: not a CFF font", ErrUnsupportedFormat)
	}
	hdrSize := int(data[2])
	if hdrSize < 4 || hdrSize > len(data) {
		return nil, fmt.Errorf("invalid CFF header size %d", hdrSize)
	}
	c := &cffFont{header: append([]byte(nil), data[:hdrSize]...)}

	pos := hdrSize
	var err error
	if c.names, pos, err = readCFFIndex(data, pos); err != nil {
		return nil, fmt.Errorf("name index: %w", err)
	}
	var topDicts [][]byte
	if topDicts, pos, err = readCFFIndex(data, pos); err != nil {
		return nil, fmt.Errorf("top dict index: %w", err)
	}
	if len(topDicts) == 0 {
		return nil, fmt.Errorf("CFF has no top dict")
	}
	if c.topDict, err = parseCFFDict(topDicts[0]); err != nil {
		return nil, fmt.Errorf("top dict: %w", err)
	}
	if c.strings, pos, err = readCFFIndex(data, pos); err != nil {
		return nil, fmt.Errorf("string index: %w", err)
	}
	if c.globalSubrs, _, err = readCFFIndex(data, pos); err != nil {
		return nil, fmt.Errorf("global subr index: %w", err)
	}

	if cst, ok := c.topDict.intOperand(cffOpCharstringType, 0); ok && cst != 2 {
		return nil, fmt.Errorf("%w: charstring type %d", ErrUnsupportedFormat, cst)
	}
	_, c.isCID = c.topDict.get(cffOpROS)

	csOff, ok := c.topDict.intOperand(cffOpCharStrings, 0)
	if !ok || csOff <= 0 || csOff >= len(data) {
		return nil, fmt.Errorf("CFF has no CharStrings index")
	}
	if c.charStrings, _, err = readCFFIndex(data, csOff); err != nil {
		return nil, fmt.Errorf("charstrings index: %w", err)
	}

	if err := c.parseCharset(data); err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}
	if !c.isCID {
		if err := c.parseEncoding(data); err != nil {
			return nil, fmt.Errorf("encoding: %w", err)
		}
		if err := c.parsePrivate(data); err != nil {
			return nil, fmt.Errorf("private dict: %w", err)
		}
	} else {
		if err := c.parseFDArray(data); err != nil {
			return nil, fmt.Errorf("fd array: %w", err)
		}
		if err := c.parseFDSelect(data); err != nil {
			return nil, fmt.Errorf("fd select: %w", err)
		}
	}
	return c, nil
}

func (c *cffFont) glyphCount() int { return len(c.charStrings) }

func (c *cffFont) parseCharset(data []byte) error {
	n := c.glyphCount()
	c.charsetIDs = make([]uint16, n)
	off, ok := c.topDict.intOperand(cffOpCharset, 0)
	if !ok || off == 0 {
		// ISOAdobe: SID i for glyph i.
		for i := range c.charsetIDs {
			c.charsetIDs[i] = uint16(i)
		}
		return nil
	}
	if off == 1 || off == 2 {
		// Expert charsets; identity is close enough for rebuild purposes
		// only when untouched, so materialize the identity view and let
		// the explicit format 0 output carry it.
		for i := range c.charsetIDs {
			c.charsetIDs[i] = uint16(i)
		}
		return nil
	}
	if off >= len(data) {
		return fmt.Errorf("offset %d out of bounds", off)
	}
	format := data[off]
	pos := off + 1
	gid := 1
	switch format {
	case 0:
		for ; gid < n; gid++ {
			if pos+2 > len(data) {
				return fmt.Errorf("truncated format 0")
			}
			c.charsetIDs[gid] = binary.BigEndian.Uint16(data[pos:])
			pos += 2
		}
	case 1, 2:
		leftSize := 1
		if format == 2 {
			leftSize = 2
		}
		for gid < n {
			if pos+2+leftSize > len(data) {
				return fmt.Errorf("truncated format %d", format)
			}
			first := binary.BigEndian.Uint16(data[pos:])
			var left int
			if format == 1 {
				left = int(data[pos+2])
			} else {
				left = int(binary.BigEndian.Uint16(data[pos+2:]))
			}
			pos += 2 + leftSize
			for k := 0; k <= left && gid < n; k++ {
				c.charsetIDs[gid] = first + uint16(k)
				gid++
			}
		}
	default:
		return fmt.Errorf("unknown format %d", format)
	}
	return nil
}

func (c *cffFont) parseEncoding(data []byte) error {
	off, ok := c.topDict.intOperand(cffOpEncoding, 0)
	if !ok {
		c.predefEncoding = 0
		return nil
	}
	if off == 0 || off == 1 {
		c.predefEncoding = off
		return nil
	}
	if off >= len(data) {
		return fmt.Errorf("offset %d out of bounds", off)
	}
	format := data[off]
	pos := off + 1
	switch format & 0x7F {
	case 0:
		if pos >= len(data) {
			return fmt.Errorf("truncated format 0")
		}
		nCodes := int(data[pos])
		pos++
		if pos+nCodes > len(data) {
			return fmt.Errorf("truncated format 0")
		}
		c.encodingCodes = append([]byte(nil), data[pos:pos+nCodes]...)
		pos += nCodes
	case 1:
		if pos >= len(data) {
			return fmt.Errorf("truncated format 1")
		}
		nRanges := int(data[pos])
		pos++
		for i := 0; i < nRanges; i++ {
			if pos+2 > len(data) {
				return fmt.Errorf("truncated format 1")
			}
			first, left := data[pos], int(data[pos+1])
			pos += 2
			for k := 0; k <= left; k++ {
				c.encodingCodes = append(c.encodingCodes, first+byte(k))
			}
		}
	default:
		return fmt.Errorf("unknown format %d", format)
	}
	if format&0x80 != 0 {
		// Supplements pair codes with SIDs, not glyph positions.
		if pos >= len(data) {
			return fmt.Errorf("truncated supplement")
		}
		nSups := int(data[pos])
		end := pos + 1 + nSups*3
		if end > len(data) {
			return fmt.Errorf("truncated supplement")
		}
		c.encodingSupplement = append([]byte(nil), data[pos:end]...)
	}
	return nil
}

func (c *cffFont) parsePrivate(data []byte) error {
	ops, ok := c.topDict.get(cffOpPrivate)
	if !ok || len(ops) < 2 {
		return nil
	}
	size, off := int(ops[0].value()), int(ops[1].value())
	dict, subrs, err := parsePrivateAt(data, size, off)
	if err != nil {
		return err
	}
	c.private, c.localSubrs = dict, subrs
	return nil
}

func parsePrivateAt(data []byte, size, off int) (cffDict, []byte, error) {
	if off < 0 || size < 0 || off+size > len(data) {
		return nil, nil, fmt.Errorf("private dict out of bounds")
	}
	dict, err := parseCFFDict(data[off : off+size])
	if err != nil {
		return nil, nil, err
	}
	var subrs []byte
	if rel, ok := dict.intOperand(cffOpSubrs, 0); ok {
		subrsOff := off + rel
		if subrsOff < 0 || subrsOff >= len(data) {
			return nil, nil, fmt.Errorf("local subrs out of bounds")
		}
		_, end, err := readCFFIndex(data, subrsOff)
		if err != nil {
			return nil, nil, fmt.Errorf("local subrs: %w", err)
		}
		subrs = append([]byte(nil), data[subrsOff:end]...)
	}
	return dict, subrs, nil
}

func (c *cffFont) parseFDArray(data []byte) error {
	off, ok := c.topDict.intOperand(cffOpFDArray, 0)
	if !ok {
		return fmt.Errorf("CID font without FDArray")
	}
	dicts, _, err := readCFFIndex(data, off)
	if err != nil {
		return err
	}
	for i, raw := range dicts {
		fd := cffFD{}
		if fd.dict, err = parseCFFDict(raw); err != nil {
			return fmt.Errorf("fd %d: %w", i, err)
		}
		if ops, ok := fd.dict.get(cffOpPrivate); ok && len(ops) >= 2 {
			size, pOff := int(ops[0].value()), int(ops[1].value())
			if fd.private, fd.localSubrs, err = parsePrivateAt(data, size, pOff); err != nil {
				return fmt.Errorf("fd %d private: %w", i, err)
			}
		}
		c.fdArray = append(c.fdArray, fd)
	}
	return nil
}

func (c *cffFont) parseFDSelect(data []byte) error {
	n := c.glyphCount()
	c.fdSelect = make([]uint8, n)
	off, ok := c.topDict.intOperand(cffOpFDSelect, 0)
	if !ok {
		return nil
	}
	if off >= len(data) {
		return fmt.Errorf("offset %d out of bounds", off)
	}
	switch data[off] {
	case 0:
		if off+1+n > len(data) {
			return fmt.Errorf("truncated format 0")
		}
		copy(c.fdSelect, data[off+1:])
	case 3:
		if off+5 > len(data) {
			return fmt.Errorf("truncated format 3")
		}
		nRanges := int(binary.BigEndian.Uint16(data[off+1:]))
		pos := off + 3
		for i := 0; i < nRanges; i++ {
			if pos+5 > len(data) {
				return fmt.Errorf("truncated format 3")
			}
			first := int(binary.BigEndian.Uint16(data[pos:]))
			fd := data[pos+2]
			next := int(binary.BigEndian.Uint16(data[pos+3:]))
			for gid := first; gid < next && gid < n; gid++ {
				c.fdSelect[gid] = fd
			}
			pos += 3
		}
	default:
		return fmt.Errorf("unknown format %d", data[off])
	}
	return nil
}

// cffStandardStringCount is the number of predefined SIDs; custom
// strings start right after.
const cffStandardStringCount = 391

// sidForName returns the SID for a glyph name, appending a custom
// string when the name is new. Only ".notdef" is resolved against the
// standard set; repair-generated names are always custom.
func (c *cffFont) sidForName(name string) uint16 {
	if name == ".notdef" {
		return 0
	}
	for i, s := range c.strings {
		if string(s) == name {
			return uint16(cffStandardStringCount + i)
		}
	}
	c.strings = append(c.strings, []byte(name))
	return uint16(cffStandardStringCount + len(c.strings) - 1)
}

// privateForGlyph returns the Private DICT governing a glyph.
func (c *cffFont) privateForGlyph(gid int) cffDict {
	if !c.isCID {
		return c.private
	}
	if gid < len(c.fdSelect) {
		if fd := int(c.fdSelect[gid]); fd < len(c.fdArray) {
			return c.fdArray[fd].private
		}
	}
	if len(c.fdArray) > 0 {
		return c.fdArray[0].private
	}
	return nil
}

// emptyCharstring builds a "0 hmoveto endchar" Type 2 program with the
// given advance width, width-prefixed when the governing Private DICT's
// defaultWidthX differs.
func (c *cffFont) emptyCharstring(gid, width int) []byte {
	var out []byte
	priv := c.privateForGlyph(gid)
	defaultW, nominalW := 0, 0
	if priv != nil {
		if v, ok := priv.intOperand(cffOpDefaultWidthX, 0); ok {
			defaultW = v
		}
		if v, ok := priv.intOperand(cffOpNominalWidthX, 0); ok {
			nominalW = v
		}
	}
	if defaultW != width {
		out = append(out, encodeT2Int(width-nominalW)...)
	}
	out = append(out, encodeT2Int(0)...)
	out = append(out, 22) // hmoveto
	out = append(out, 14) // endchar
	return out
}

// hasNotdef reports whether glyph 0 is a usable .notdef: the charset
// must assign it ID 0 and its charstring must not be empty.
func (c *cffFont) hasNotdef() bool {
	return c.glyphCount() > 0 && len(c.charStrings[0]) > 0 && c.charsetIDs[0] == 0
}

// insertNotdef prepends a .notdef glyph at GID 0, shifting every glyph
// up by one. The custom encoding, when present, gains a zero code for
// the new glyph so existing code assignments keep their glyphs.
func (c *cffFont) insertNotdef() {
	c.charStrings = append([][]byte{c.emptyCharstring(0, 0)}, c.charStrings...)
	c.charsetIDs = append([]uint16{0}, c.charsetIDs...)
	if c.encodingCodes != nil {
		// Old glyph 0 had no encoding slot; new glyph 1 (the old glyph 0)
		// gets code 0 so the rest of the array stays aligned.
		c.encodingCodes = append([]byte{0}, c.encodingCodes...)
	}
	if c.isCID {
		fd := uint8(0)
		if len(c.fdSelect) > 0 {
			fd = c.fdSelect[0]
		}
		c.fdSelect = append([]uint8{fd}, c.fdSelect...)
	}
}

// appendEmptyGlyph adds an empty glyph carrying the given charset ID
// (SID for name-keyed fonts, CID for CID-keyed) and advance width, and
// returns its GID.
func (c *cffFont) appendEmptyGlyph(id uint16, width int) int {
	gid := c.glyphCount()
	c.charStrings = append(c.charStrings, c.emptyCharstring(gid, width))
	c.charsetIDs = append(c.charsetIDs, id)
	if c.encodingCodes != nil {
		c.encodingCodes = append(c.encodingCodes, 0)
	}
	if c.isCID {
		fd := uint8(0)
		if n := len(c.fdSelect); n > 0 {
			fd = c.fdSelect[n-1]
		}
		c.fdSelect = append(c.fdSelect, fd)
	}
	return gid
}

// serialize reassembles the font. Section offsets in the Top DICT and
// FD DICTs are emitted as 5-byte integers, so every section size is
// fixed before offsets are assigned; the layout is header, name, top
// dict, string, global subr indexes, then encoding, charset, fdselect,
// charstrings, fdarray and private dicts with their local subrs.
func (c *cffFont) serialize() ([]byte, error) {
	nameIdx := buildCFFIndex(c.names)
	stringIdx := buildCFFIndex(c.strings)
	gsubrIdx := buildCFFIndex(c.globalSubrs)
	charStringsIdx := buildCFFIndex(c.charStrings)

	var encoding, charset, fdSelect []byte
	if c.encodingCodes != nil {
		encoding = c.buildEncoding()
	}
	charset = c.buildCharset()
	if c.isCID {
		fdSelect = make([]byte, 1+len(c.fdSelect))
		copy(fdSelect[1:], c.fdSelect)
	}

	// Private DICTs are rewritten with a fixed-width Subrs offset equal
	// to the dict's own size, placing local subrs right behind it.
	privateBlob := func(dict cffDict, subrs []byte) []byte {
		if dict == nil {
			return nil
		}
		out := serializeCFFDict(dict, map[int]int{cffOpSubrs: 0}, nil)
		if subrs == nil {
			return out
		}
		out = serializeCFFDict(dict, map[int]int{cffOpSubrs: len(out)}, nil)
		return append(out, subrs...)
	}

	mainPrivate := privateBlob(c.private, c.localSubrs)
	mainPrivateSize := len(serializeCFFDict(c.private, map[int]int{cffOpSubrs: 0}, nil))

	fdPrivates := make([][]byte, len(c.fdArray))
	fdPrivateSizes := make([]int, len(c.fdArray))
	for i, fd := range c.fdArray {
		fdPrivates[i] = privateBlob(fd.private, fd.localSubrs)
		fdPrivateSizes[i] = len(serializeCFFDict(fd.private, map[int]int{cffOpSubrs: 0}, nil))
	}

	// FD DICT sizes are stable because the Private operands use the
	// fixed-width encoding; real offsets are patched in on the second
	// pass below.
	buildFDDicts := func(offsets []int) [][]byte {
		out := make([][]byte, len(c.fdArray))
		for i, fd := range c.fdArray {
			patch := map[int]int{}
			var pair []int
			if fdPrivates[i] != nil {
				off := 0
				if offsets != nil {
					off = offsets[i]
				}
				pair = []int{fdPrivateSizes[i], off}
			}
			out[i] = serializeCFFDict(fd.dict, patch, map[int][]int{cffOpPrivate: pair})
		}
		return out
	}
	fdArrayIdx := buildCFFIndex(buildFDDicts(nil))

	topPatch := map[int]int{cffOpCharStrings: 0, cffOpCharset: 0}
	topPairs := map[int][]int{}
	if encoding != nil {
		topPatch[cffOpEncoding] = 0
	}
	if c.isCID {
		topPatch[cffOpFDArray] = 0
		topPatch[cffOpFDSelect] = 0
	}
	if mainPrivate != nil {
		topPairs[cffOpPrivate] = []int{mainPrivateSize, 0}
	}
	topDictSize := len(serializeCFFDict(c.topDict, topPatch, topPairs))
	topDictIdxSize := len(buildCFFIndex([][]byte{make([]byte, topDictSize)}))

	// Lay the sections out.
	pos := len(c.header) + len(nameIdx) + topDictIdxSize + len(stringIdx) + len(gsubrIdx)
	encodingOff := pos
	pos += len(encoding)
	charsetOff := pos
	pos += len(charset)
	fdSelectOff := pos
	pos += len(fdSelect)
	charStringsOff := pos
	pos += len(charStringsIdx)
	fdArrayOff := pos
	pos += len(fdArrayIdx)
	mainPrivateOff := pos
	pos += len(mainPrivate)
	fdPrivateOffs := make([]int, len(fdPrivates))
	for i := range fdPrivates {
		fdPrivateOffs[i] = pos
		pos += len(fdPrivates[i])
	}

	topPatch[cffOpCharStrings] = charStringsOff
	topPatch[cffOpCharset] = charsetOff
	if encoding != nil {
		topPatch[cffOpEncoding] = encodingOff
	}
	if c.isCID {
		topPatch[cffOpFDArray] = fdArrayOff
		topPatch[cffOpFDSelect] = fdSelectOff
	}
	if mainPrivate != nil {
		topPairs[cffOpPrivate] = []int{mainPrivateSize, mainPrivateOff}
	}
	topDict := serializeCFFDict(c.topDict, topPatch, topPairs)
	if len(topDict) != topDictSize {
		return nil, fmt.Errorf("top dict size drifted during rebuild")
	}
	fdArrayIdx = buildCFFIndex(buildFDDicts(fdPrivateOffs))

	var buf bytes.Buffer
	buf.Write(c.header)
	buf.Write(nameIdx)
	buf.Write(buildCFFIndex([][]byte{topDict}))
	buf.Write(stringIdx)
	buf.Write(gsubrIdx)
	buf.Write(encoding)
	buf.Write(charset)
	buf.Write(fdSelect)
	buf.Write(charStringsIdx)
	buf.Write(fdArrayIdx)
	buf.Write(mainPrivate)
	for _, p := range fdPrivates {
		buf.Write(p)
	}
	return buf.Bytes(), nil
}

func (c *cffFont) buildCharset() []byte {
	if len(c.charsetIDs) == 0 {
		return []byte{0}
	}
	out := make([]byte, 1+2*(len(c.charsetIDs)-1))
	for gid := 1; gid < len(c.charsetIDs); gid++ {
		binary.BigEndian.PutUint16(out[1+2*(gid-1):], c.charsetIDs[gid])
	}
	return out
}

func (c *cffFont) buildEncoding() []byte {
	format := byte(0)
	if c.encodingSupplement != nil {
		format |= 0x80
	}
	codes := c.encodingCodes
	if len(codes) > 255 {
		codes = codes[:255]
	}
	out := []byte{format, byte(len(codes))}
	out = append(out, codes...)
	return append(out, c.encodingSupplement...)
}

// readCFFIndex reads an INDEX at pos, returning its items and the
// offset of the byte following the structure.
func readCFFIndex(data []byte, pos int) ([][]byte, int, error) {
	if pos+2 > len(data) {
		return nil, 0, fmt.Errorf("truncated index")
	}
	count := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	if count == 0 {
		return nil, pos, nil
	}
	if pos >= len(data) {
		return nil, 0, fmt.Errorf("truncated index")
	}
	offSize := int(data[pos])
	pos++
	if offSize < 1 || offSize > 4 {
		return nil, 0, fmt.Errorf("invalid offset size %d", offSize)
	}
	if pos+(count+1)*offSize > len(data) {
		return nil, 0, fmt.Errorf("truncated index offsets")
	}
	offsets := make([]int, count+1)
	for i := range offsets {
		var v uint32
		for k := 0; k < offSize; k++ {
			v = v<<8 | uint32(data[pos])
			pos++
		}
		offsets[i] = int(v)
	}
	dataStart := pos - 1 // offsets are 1-based from here
	end := dataStart + offsets[count]
	if end > len(data) {
		return nil, 0, fmt.Errorf("index data out of bounds")
	}
	items := make([][]byte, count)
	for i := 0; i < count; i++ {
		lo, hi := dataStart+offsets[i], dataStart+offsets[i+1]
		if lo < dataStart+1 || hi < lo || hi > end {
			return nil, 0, fmt.Errorf("invalid index offsets")
		}
		// Zero-length items stay non-nil so a rebuilt INDEX round-trips.
		items[i] = append(make([]byte, 0, hi-lo), data[lo:hi]...)
	}
	return items, end, nil
}

// buildCFFIndex writes an INDEX with 4-byte offsets.
func buildCFFIndex(items [][]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(items)))
	if len(items) == 0 {
		return buf.Bytes()
	}
	buf.WriteByte(4)
	off := uint32(1)
	binary.Write(&buf, binary.BigEndian, off)
	for _, item := range items {
		off += uint32(len(item))
		binary.Write(&buf, binary.BigEndian, off)
	}
	for _, item := range items {
		buf.Write(item)
	}
	return buf.Bytes()
}

// parseCFFDict decodes DICT data keeping the raw operand bytes of each
// entry for faithful re-serialization.
func parseCFFDict(data []byte) (cffDict, error) {
	var dict cffDict
	r := bytes.NewReader(data)
	var operands []cffOperand
	entryStart := 0
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b <= 21 {
			op := int(b)
			opLen := 1
			if b == 12 {
				b2, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				op = 1200 + int(b2)
				opLen = 2
			}
			rawEnd := len(data) - r.Len() - opLen
			dict = append(dict, cffDictEntry{
				op:       op,
				operands: operands,
				raw:      append([]byte(nil), data[entryStart:rawEnd]...),
			})
			operands = nil
			entryStart = len(data) - r.Len()
			continue
		}
		switch {
		case b == 28 || b == 29 || (b >= 32 && b <= 254):
			r.UnreadByte()
			val, err := readCFFInteger(r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, cffOperand{Int: val, IsInt: true})
		case b == 30:
			val, err := readCFFReal(r)
			if err != nil {
				return nil, err
			}
			operands = append(operands, cffOperand{Float: val})
		default:
			// Reserved byte; skip.
		}
	}
	return dict, nil
}

// serializeCFFDict re-emits a DICT. Operators listed in patchOffsets get
// a single fixed-width integer operand with the given value; operators
// in patchPairs get the listed fixed-width operands (nil drops the
// entry); everything else keeps its original operand bytes.
func serializeCFFDict(dict cffDict, patchOffsets map[int]int, patchPairs map[int][]int) []byte {
	var buf bytes.Buffer
	writeOp := func(op int) {
		if op >= 1200 {
			buf.WriteByte(12)
			buf.WriteByte(byte(op - 1200))
		} else {
			buf.WriteByte(byte(op))
		}
	}
	for _, e := range dict {
		if pair, ok := patchPairs[e.op]; ok {
			if pair == nil {
				continue
			}
			for _, v := range pair {
				buf.Write(encodeCFFInt29(v))
			}
			writeOp(e.op)
			continue
		}
		if v, ok := patchOffsets[e.op]; ok {
			buf.Write(encodeCFFInt29(v))
			writeOp(e.op)
			continue
		}
		buf.Write(e.raw)
		writeOp(e.op)
	}
	return buf.Bytes()
}

// encodeCFFInt29 is the 5-byte DICT integer encoding, used for every
// rebuilt offset so DICT sizes are independent of the offset values.
func encodeCFFInt29(v int) []byte {
	out := make([]byte, 5)
	out[0] = 29
	binary.BigEndian.PutUint32(out[1:], uint32(int32(v)))
	return out
}

func readCFFInteger(r *bytes.Reader) (int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0 >= 32 && b0 <= 246:
		return int(b0) - 139, nil
	case b0 >= 247 && b0 <= 250:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return (int(b0)-247)*256 + int(b1) + 108, nil
	case b0 >= 251 && b0 <= 254:
		b1, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		return -(int(b0)-251)*256 - int(b1) - 108, nil
	case b0 == 28:
		var val int16
		if err := binary.Read(r, binary.BigEndian, &val); err != nil {
			return 0, err
		}
		return int(val), nil
	case b0 == 29:
		var val int32
		if err := binary.Read(r, binary.BigEndian, &val); err != nil {
			return 0, err
		}
		return int(val), nil
	}
	return 0, fmt.Errorf("invalid integer prefix %d", b0)
}

func readCFFReal(r *bytes.Reader) (float64, error) {
	var s string
	done := false
	for !done {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		for _, n := range []byte{b >> 4, b & 0x0F} {
			switch n {
			case 0xA:
				s += "."
			case 0xB:
				s += "E"
			case 0xC:
				s += "E-"
			case 0xD:
				// reserved
			case 0xE:
				s += "-"
			case 0xF:
				done = true
			default:
				s += strconv.Itoa(int(n))
			}
			if done {
				break
			}
		}
	}
	return strconv.ParseFloat(s, 64)
}

// encodeT2Int encodes an integer operand for a Type 2 charstring.
func encodeT2Int(v int) []byte {
	switch {
	case v >= -107 && v <= 107:
		return []byte{byte(v + 139)}
	case v >= 108 && v <= 1131:
		v -= 108
		return []byte{byte(v/256 + 247), byte(v % 256)}
	case v >= -1131 && v <= -108:
		v = -v - 108
		return []byte{byte(v/256 + 251), byte(v % 256)}
	default:
		return []byte{28, byte(v >> 8), byte(v)}
	}
}
