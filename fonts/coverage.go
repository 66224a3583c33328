package fonts

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Glyph coverage repair: every character code a content stream actually
// paints with a font must resolve to a glyph in the embedded program.
// Codes with no glyph get an empty one appended, sized from the widths
// the PDF already declares so text layout does not move.

// EnsureGlyphCoverage appends empty glyphs for used-but-missing codes in
// every embedded font. It returns the total number of used glyph slots
// that were filled; filler glyphs appended only to keep glyph IDs
// contiguous do not count.
func (e *Engine) EnsureGlyphCoverage(ctx context.Context, doc *raw.Document) (int, error) {
	usage := e.CollectUsage(ctx, doc)
	fixed := 0
	for _, fr := range CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		codes := usage.For(doc, fr)
		if len(codes) == 0 {
			continue
		}
		info := e.AnalyzeFont(ctx, doc, fr.Dict)
		if info.Kind == KindType3 || !info.Embedded {
			continue
		}

		var added int
		var err error
		switch {
		case info.Kind == KindType0 && info.DescendantSubtype == "CIDFontType2":
			added, err = e.coverCIDType2(ctx, doc, info, codes)
		case info.Kind == KindType0 && info.DescendantSubtype == "CIDFontType0":
			added, err = e.coverCIDType0(ctx, doc, info, codes)
		case info.Kind == KindType0:
			continue
		case info.FontFileKey == "FontFile2":
			added, err = e.coverSimpleTrueType(ctx, doc, fr.Dict, info, codes)
		case info.FontFileKey == "FontFile":
			added, err = e.coverSimpleType1(ctx, doc, fr.Dict, info, codes)
		case info.FontFileKey == "FontFile3":
			added, err = e.coverSimpleCFF(ctx, doc, fr.Dict, info, codes)
		}
		if err != nil {
			e.log.Warn("glyph coverage repair failed",
				fieldStr("font", info.BaseFont), fieldErr(err))
			continue
		}
		fixed += added
	}
	return fixed, nil
}

// differencesMap reads the /Differences of a font's /Encoding dictionary
// into a code→glyph-name map.
func differencesMap(doc *raw.Document, fontDict raw.Dictionary) map[byte]string {
	enc, ok := doc.DictGet(fontDict, "Encoding").(raw.Dictionary)
	if !ok {
		return nil
	}
	diffs, ok := doc.DictGetArray(enc, "Differences")
	if !ok {
		return nil
	}
	out := make(map[byte]string)
	code := -1
	for i := 0; i < diffs.Len(); i++ {
		switch v := doc.ArrayGet(diffs, i).(type) {
		case raw.Number:
			code = int(v.Float())
		case raw.Name:
			if code >= 0 && code <= 255 {
				out[byte(code)] = v.Value()
			}
			code++
		}
	}
	return out
}

// simpleGlyphName resolves a character code to a glyph name through the
// font's /Encoding: Differences first, then the base encoding via AGL.
func simpleGlyphName(doc *raw.Document, fontDict raw.Dictionary, diffs map[byte]string, code byte) (string, bool) {
	if name, ok := diffs[code]; ok {
		return name, true
	}
	base := ""
	switch enc := doc.DictGet(fontDict, "Encoding").(type) {
	case raw.Name:
		base = enc.Value()
	case raw.Dictionary:
		base, _ = doc.DictGetName(enc, "BaseEncoding")
	}
	r, ok := BaseEncodingToRune(base, code)
	if !ok {
		return "", false
	}
	return RuneToGlyphName(r), true
}

// simpleRune resolves a character code to Unicode through the font's
// /Encoding, Differences included.
func simpleRune(doc *raw.Document, fontDict raw.Dictionary, diffs map[byte]string, code byte) (rune, bool) {
	if name, ok := diffs[code]; ok {
		return GlyphNameToRune(name)
	}
	base := ""
	switch enc := doc.DictGet(fontDict, "Encoding").(type) {
	case raw.Name:
		base = enc.Value()
	case raw.Dictionary:
		base, _ = doc.DictGetName(enc, "BaseEncoding")
	}
	return BaseEncodingToRune(base, code)
}

// pdfWidthOf reads the /Widths entry for a code, in text space units.
func pdfWidthOf(doc *raw.Document, fontDict raw.Dictionary, code int) (int, bool) {
	first, ok := doc.DictGetInt(fontDict, "FirstChar")
	if !ok {
		return 0, false
	}
	widths, ok := doc.DictGetArray(fontDict, "Widths")
	if !ok {
		return 0, false
	}
	idx := code - int(first)
	if idx < 0 || idx >= widths.Len() {
		return 0, false
	}
	if n, ok := doc.ArrayGet(widths, idx).(raw.Number); ok {
		return int(n.Float()), true
	}
	return 0, false
}

// coverSimpleTrueType appends empty glyphs for missing codes of a simple
// TrueType font and maps them in the program's cmap. Symbolic fonts
// resolve codes through their (3,0) subtable with the 0xF000 convention;
// non-symbolic fonts go encoding→AGL→Unicode cmap.
func (e *Engine) coverSimpleTrueType(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo, codes map[uint32]bool) (int, error) {
	f, err := parseSfnt(info.Program)
	if err != nil {
		return 0, err
	}
	if !f.hasTable("glyf") {
		return 0, nil
	}
	diffs := differencesMap(doc, fontDict)
	numGlyphs := f.numGlyphs()

	var symbolMap, uniMap map[uint32]uint16
	if cmap, err := f.table("cmap"); err == nil {
		subs := parseCmapSubtables(cmap)
		if ms := findCmapSubtable(subs, 3, 0); ms != nil {
			symbolMap = parseCmapMapping(*ms)
		}
		m := unicodeMapping(f)
		uniMap = make(map[uint32]uint16, len(m))
		for r, gid := range m {
			uniMap[uint32(r)] = gid
		}
	}

	gidForCode := func(code byte) (uint16, bool) {
		if info.Symbolic {
			if gid, ok := symbolMap[0xF000|uint32(code)]; ok {
				return gid, true
			}
			gid, ok := symbolMap[uint32(code)]
			return gid, ok
		}
		r, ok := simpleRune(doc, fontDict, diffs, code)
		if !ok {
			return 0, false
		}
		gid, ok := uniMap[uint32(r)]
		return gid, ok
	}

	newGlyphs := make(map[int]int) // gid -> advance in font units
	addSymbol := make(map[uint32]uint16)
	addUni := make(map[uint32]uint16)
	next := numGlyphs
	upem := f.unitsPerEm()
	for _, code := range sortedCodes(codes) {
		if code > 0xFF {
			continue
		}
		if gid, ok := gidForCode(byte(code)); ok && int(gid) < numGlyphs {
			continue
		}
		adv := 0
		if w, ok := pdfWidthOf(doc, fontDict, int(code)); ok {
			adv = w * upem / 1000
		}
		gid := next
		next++
		newGlyphs[gid] = adv
		if info.Symbolic {
			addSymbol[0xF000|code] = uint16(gid)
		} else if r, ok := simpleRune(doc, fontDict, diffs, byte(code)); ok {
			addUni[uint32(r)] = uint16(gid)
		}
	}
	if len(newGlyphs) == 0 {
		return 0, nil
	}

	rebuilt, err := appendEmptyGlyphsSfnt(f, newGlyphs)
	if err != nil {
		return 0, err
	}
	f2, err := parseSfnt(rebuilt)
	if err != nil {
		return 0, err
	}
	newCmap, err := cmapWithAdditions(f2, addSymbol, addUni)
	if err != nil {
		return 0, err
	}
	b := &fontBuilder{}
	for tag := range f2.tables {
		data, err := f2.table(tag)
		if err != nil {
			return 0, err
		}
		b.addTable(tag, data)
	}
	b.addTable("cmap", newCmap)
	if err := e.replaceFontProgram(ctx, doc, info, b.bytes()); err != nil {
		return 0, err
	}
	e.log.Info("appended empty glyphs", fieldStr("font", info.BaseFont),
		fieldInt("count", len(newGlyphs)))
	return len(newGlyphs), nil
}

// coverCIDType2 appends empty glyphs contiguously up to the highest GID
// the document's CIDs reach through /CIDToGIDMap.
func (e *Engine) coverCIDType2(ctx context.Context, doc *raw.Document, info *FontInfo, codes map[uint32]bool) (int, error) {
	f, err := parseSfnt(info.Program)
	if err != nil {
		return 0, err
	}
	if !f.hasTable("glyf") {
		return 0, nil
	}
	numGlyphs := f.numGlyphs()

	cidToGID := func(cid uint32) int { return int(cid) }
	if st, ok := doc.DictGetStream(info.Descendant, "CIDToGIDMap"); ok {
		data, err := e.filters.DecodeStream(ctx, doc, st)
		if err != nil {
			return 0, fmt.Errorf("decode CIDToGIDMap: %w", err)
		}
		cidToGID = func(cid uint32) int {
			off := int(cid) * 2
			if off+2 > len(data) {
				return 0
			}
			return int(binary.BigEndian.Uint16(data[off:]))
		}
	}

	upem := f.unitsPerEm()
	newGlyphs := make(map[int]int)
	maxGID := numGlyphs - 1
	for _, cid := range sortedCodes(codes) {
		gid := cidToGID(cid)
		if gid < numGlyphs {
			continue
		}
		if gid > maxGID {
			maxGID = gid
		}
		newGlyphs[gid] = cidWidth1000(doc, info.Descendant, int(cid)) * upem / 1000
	}
	referenced := len(newGlyphs)
	if referenced == 0 {
		return 0, nil
	}
	// Contiguous fill: GIDs between the old count and the max get empty
	// zero-width glyphs even when no CID maps to them.
	for gid := numGlyphs; gid <= maxGID; gid++ {
		if _, ok := newGlyphs[gid]; !ok {
			newGlyphs[gid] = 0
		}
	}

	rebuilt, err := appendEmptyGlyphsSfnt(f, newGlyphs)
	if err != nil {
		return 0, err
	}
	if err := e.replaceFontProgram(ctx, doc, info, rebuilt); err != nil {
		return 0, err
	}
	e.log.Info("appended empty glyphs", fieldStr("font", info.BaseFont),
		fieldInt("count", referenced))
	return referenced, nil
}

// cidWidth1000 resolves a CID's width from the descendant's /W array,
// falling back to /DW and then 1000.
func cidWidth1000(doc *raw.Document, descendant raw.Dictionary, cid int) int {
	if descendant == nil {
		return 1000
	}
	if w, ok := doc.DictGetArray(descendant, "W"); ok {
		i := 0
		for i < w.Len() {
			first, ok := doc.ArrayGet(w, i).(raw.Number)
			if !ok {
				break
			}
			switch second := doc.ArrayGet(w, i+1).(type) {
			case raw.Array:
				c := int(first.Float())
				if cid >= c && cid < c+second.Len() {
					if n, ok := doc.ArrayGet(second, cid-c).(raw.Number); ok {
						return int(n.Float())
					}
				}
				i += 2
			case raw.Number:
				if i+2 < w.Len() {
					if width, ok := doc.ArrayGet(w, i+2).(raw.Number); ok &&
						cid >= int(first.Float()) && cid <= int(second.Float()) {
						return int(width.Float())
					}
				}
				i += 3
			default:
				i = w.Len()
			}
		}
	}
	if dw, ok := doc.DictGetInt(descendant, "DW"); ok {
		return int(dw)
	}
	return 1000
}

// coverCIDType0 appends charstrings for missing CIDs of a CFF-based
// CIDFont. CID-keyed programs get the CID as the charset entry; a
// name-keyed program standing in for one gets cidNNNNN glyph names.
func (e *Engine) coverCIDType0(ctx context.Context, doc *raw.Document, info *FontInfo, codes map[uint32]bool) (int, error) {
	cffData := info.Program
	var shell *sfntFont
	if isSfntSignature(info.Program) {
		f, err := parseSfnt(info.Program)
		if err != nil {
			return 0, err
		}
		if cffData, err = f.table("CFF "); err != nil {
			return 0, fmt.Errorf("%w: OpenType font without outlines", ErrUnsupportedFormat)
		}
		shell = f
	}
	c, err := parseCFFFont(cffData)
	if err != nil {
		return 0, err
	}

	present := make(map[uint16]bool, len(c.charsetIDs))
	for _, id := range c.charsetIDs {
		present[id] = true
	}

	// added counts the CIDs the document actually draws; contiguous
	// filler glyphs in the name-keyed case stay out of the tally.
	added := 0
	for _, cid := range sortedCodes(codes) {
		if cid > 0xFFFF {
			continue
		}
		width := cidWidth1000(doc, info.Descendant, int(cid))
		if c.isCID {
			if present[uint16(cid)] {
				continue
			}
			c.appendEmptyGlyph(uint16(cid), width)
			present[uint16(cid)] = true
		} else {
			// Name-keyed: readers address glyphs by GID here, so fill
			// contiguously up to the CID.
			if int(cid) < c.glyphCount() {
				continue
			}
			for gid := c.glyphCount(); gid <= int(cid); gid++ {
				w := 0
				if gid == int(cid) {
					w = width
				}
				c.appendEmptyGlyph(c.sidForName(fmt.Sprintf("cid%05d", gid)), w)
			}
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}

	rebuilt, err := c.serialize()
	if err != nil {
		return 0, err
	}
	program := rebuilt
	if shell != nil {
		b := &fontBuilder{scaler: scalerCFF}
		for tag := range shell.tables {
			data, err := shell.table(tag)
			if err != nil {
				return 0, err
			}
			b.addTable(tag, data)
		}
		b.addTable("CFF ", rebuilt)
		program = b.bytes()
	}
	if err := e.replaceFontProgram(ctx, doc, info, program); err != nil {
		return 0, err
	}
	e.log.Info("appended empty charstrings", fieldStr("font", info.BaseFont),
		fieldInt("count", added))
	return added, nil
}

// coverSimpleType1 inserts empty charstrings, named through the font's
// encoding, for missing codes of a Type 1 font.
func (e *Engine) coverSimpleType1(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo, codes map[uint32]bool) (int, error) {
	t1, err := parseType1(info.Program)
	if err != nil {
		return 0, err
	}
	plain := t1Decrypt(eexecKey, t1.cipher)
	lenIV := lenIVOf(plain)
	diffs := differencesMap(doc, fontDict)

	entries := make(map[string][]byte)
	for _, code := range sortedCodes(codes) {
		if code > 0xFF {
			continue
		}
		name, ok := simpleGlyphName(doc, fontDict, diffs, byte(code))
		if !ok || name == "" {
			continue
		}
		if type1HasGlyph(plain, name) {
			continue
		}
		width := 0
		if w, ok := pdfWidthOf(doc, fontDict, int(code)); ok {
			width = w // Type 1 programs use a 1000-unit em
		}
		entries[name] = t1WidthCharstring(lenIV, width)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	patched, err := insertCharstrings(plain, entries)
	if err != nil {
		return 0, err
	}
	t1.cipher = t1Encrypt(eexecKey, patched)
	if err := e.replaceFontProgram(ctx, doc, info, t1.bytes()); err != nil {
		return 0, err
	}
	e.log.Info("appended empty charstrings", fieldStr("font", info.BaseFont),
		fieldInt("count", len(entries)))
	return len(entries), nil
}

// coverSimpleCFF appends empty glyphs for missing codes of a simple
// Type1C font. Only programs with a custom encoding are repaired; the
// predefined encodings imply a complete standard glyph set.
func (e *Engine) coverSimpleCFF(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary, info *FontInfo, codes map[uint32]bool) (int, error) {
	if isSfntSignature(info.Program) {
		// OpenType shell around CFF outlines: the cmap addresses glyphs,
		// so the TrueType path applies to lookups but appending outlines
		// needs CFF surgery. Route through the CID helper's shell logic
		// is not applicable for simple fonts; skip.
		return 0, nil
	}
	c, err := parseCFFFont(info.Program)
	if err != nil {
		return 0, err
	}
	if c.isCID || c.encodingCodes == nil {
		return 0, nil
	}

	present := make(map[byte]bool, len(c.encodingCodes))
	for _, code := range c.encodingCodes {
		present[code] = true
	}
	diffs := differencesMap(doc, fontDict)

	added := 0
	for _, code := range sortedCodes(codes) {
		if code > 0xFF || present[byte(code)] {
			continue
		}
		name, ok := simpleGlyphName(doc, fontDict, diffs, byte(code))
		if !ok || name == "" {
			continue
		}
		width := 0
		if w, ok := pdfWidthOf(doc, fontDict, int(code)); ok {
			width = w
		}
		gid := c.appendEmptyGlyph(c.sidForName(name), width)
		if gid-1 < len(c.encodingCodes) {
			c.encodingCodes[gid-1] = byte(code)
		}
		present[byte(code)] = true
		added++
	}
	if added == 0 {
		return 0, nil
	}

	rebuilt, err := c.serialize()
	if err != nil {
		return 0, err
	}
	if err := e.replaceFontProgram(ctx, doc, info, rebuilt); err != nil {
		return 0, err
	}
	e.log.Info("appended empty charstrings", fieldStr("font", info.BaseFont),
		fieldInt("count", added))
	return added, nil
}

// type1HasGlyph reports whether decrypted eexec text defines a glyph
// name in its CharStrings dict.
func type1HasGlyph(plain []byte, name string) bool {
	needle := []byte("/" + name)
	for at := 0; ; {
		i := indexFrom(plain, needle, at)
		if i < 0 {
			return false
		}
		end := i + len(needle)
		if end >= len(plain) || plain[end] == ' ' || plain[end] == '\t' ||
			plain[end] == '\r' || plain[end] == '\n' || plain[end] == '{' {
			return true
		}
		at = end
	}
}

func indexFrom(data, needle []byte, from int) int {
	if from >= len(data) {
		return -1
	}
	for i := from; i+len(needle) <= len(data); i++ {
		if string(data[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}

// t1WidthCharstring encrypts a "0 w hsbw endchar" charstring.
func t1WidthCharstring(lenIV, width int) []byte {
	if lenIV < 0 {
		lenIV = 0
	}
	plain := make([]byte, lenIV, lenIV+8)
	plain = append(plain, encodeT2Int(0)...)
	plain = append(plain, encodeT2Int(width)...)
	plain = append(plain, 13, 14) // hsbw endchar
	return t1Encrypt(charstringKey, plain)
}

// appendEmptyGlyphsSfnt rebuilds a glyf font with empty glyphs appended
// for every GID in newGlyphs (gid → advance in font units). GIDs must
// start at the current glyph count; gaps are not allowed.
func appendEmptyGlyphsSfnt(f *sfntFont, newGlyphs map[int]int) ([]byte, error) {
	for _, tag := range []string{"glyf", "loca", "head", "maxp", "hmtx", "hhea"} {
		if !f.hasTable(tag) {
			return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, tag)
		}
	}
	numGlyphs := f.numGlyphs()
	maxGID := numGlyphs - 1
	for gid := range newGlyphs {
		if gid < numGlyphs {
			return nil, fmt.Errorf("gid %d already present", gid)
		}
		if gid > maxGID {
			maxGID = gid
		}
	}
	total := maxGID + 1
	for gid := numGlyphs; gid < total; gid++ {
		if _, ok := newGlyphs[gid]; !ok {
			return nil, fmt.Errorf("gid gap at %d", gid)
		}
	}
	if total > 0xFFFF {
		return nil, fmt.Errorf("glyph count %d exceeds 65535", total)
	}

	loca, err := f.table("loca")
	if err != nil {
		return nil, err
	}
	glyf, err := f.table("glyf")
	if err != nil {
		return nil, err
	}
	var newGlyf []byte
	newLoca := make([]byte, (total+1)*4)
	for gid := 0; gid < numGlyphs; gid++ {
		binary.BigEndian.PutUint32(newLoca[gid*4:], uint32(len(newGlyf)))
		newGlyf = append(newGlyf, f.glyfEntry(loca, glyf, gid)...)
	}
	for gid := numGlyphs; gid <= total; gid++ {
		binary.BigEndian.PutUint32(newLoca[gid*4:], uint32(len(newGlyf)))
	}

	oldHmtx, err := f.rebuildHmtx(numGlyphs)
	if err != nil {
		return nil, err
	}
	newHmtx := make([]byte, total*4)
	copy(newHmtx, oldHmtx)
	for gid := numGlyphs; gid < total; gid++ {
		binary.BigEndian.PutUint16(newHmtx[gid*4:], uint16(newGlyphs[gid]))
	}

	maxp, err := f.table("maxp")
	if err != nil {
		return nil, err
	}
	newMaxp := append([]byte(nil), maxp...)
	binary.BigEndian.PutUint16(newMaxp[4:], uint16(total))

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
		binary.BigEndian.PutUint16(newHhea[34:], uint16(total))
	}

	b := &fontBuilder{}
	b.addTable("glyf", newGlyf)
	b.addTable("loca", newLoca)
	b.addTable("hmtx", newHmtx)
	b.addTable("maxp", newMaxp)
	b.addTable("head", newHead)
	b.addTable("hhea", newHhea)
	for _, tag := range []string{"cmap", "name", "OS/2", "post", "cvt ", "fpgm", "prep", "GSUB", "GPOS", "GDEF", "gasp"} {
		if !f.hasTable(tag) {
			continue
		}
		data, err := f.table(tag)
		if err != nil {
			return nil, err
		}
		b.addTable(tag, data)
	}
	return b.bytes(), nil
}

// cmapWithAdditions rebuilds a font's cmap with extra code→GID entries:
// addSymbol goes to the (3,0) subtable, addUni to (3,1). Absent
// subtables are created when they have entries to carry.
func cmapWithAdditions(f *sfntFont, addSymbol, addUni map[uint32]uint16) ([]byte, error) {
	var subs []cmapSubtable
	if cmap, err := f.table("cmap"); err == nil {
		subs = parseCmapSubtables(cmap)
	}

	merged := make(map[[2]uint16]map[uint32]uint16)
	var order [][2]uint16
	for _, sub := range subs {
		key := [2]uint16{sub.platformID, sub.encodingID}
		if _, ok := merged[key]; !ok {
			merged[key] = parseCmapMapping(sub)
			order = append(order, key)
		}
	}
	addTo := func(key [2]uint16, entries map[uint32]uint16) {
		if len(entries) == 0 {
			return
		}
		if _, ok := merged[key]; !ok {
			merged[key] = make(map[uint32]uint16)
			order = append(order, key)
		}
		for code, gid := range entries {
			merged[key][code] = gid
		}
	}
	addTo([2]uint16{3, 0}, addSymbol)
	addTo([2]uint16{3, 1}, addUni)

	var records []cmapSubtable
	for _, key := range order {
		mapping := merged[key]
		if len(mapping) == 0 {
			continue
		}
		records = append(records, cmapSubtable{
			platformID: key[0],
			encodingID: key[1],
			format:     4,
			data:       buildCmapFormat4(mapping),
		})
	}
	if len(records) == 0 {
		return f.table("cmap")
	}
	out := buildCmapTable(records)
	if err := validateCmapOffsets(out); err != nil {
		return nil, err
	}
	return out, nil
}

// sortedCodes returns the used codes in ascending order.
func sortedCodes(codes map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
