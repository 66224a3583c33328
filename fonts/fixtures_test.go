package fonts

import (
	"encoding/binary"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Test fonts are synthesized in memory: a minimal glyf-based TrueType
// with configurable glyph count, cmap and post table, plus helpers that
// assemble documents around them.

type ttOptions struct {
	numGlyphs int
	// notdef controls whether the version 2.0 post table names glyph 0
	// ".notdef" (index 0) or something else.
	notdef bool
	// cmap31 populates a (3,1) Unicode subtable; nil for no cmap.
	cmap31 map[uint32]uint16
	// cmap30 populates a (3,0) symbol subtable.
	cmap30 map[uint32]uint16
	// advances per glyph in font units; missing entries default to 500.
	advances []int
	fsType   uint16
}

func buildTestTrueType(opts ttOptions) []byte {
	n := opts.numGlyphs
	if n == 0 {
		n = 3
	}

	head := make([]byte, 54)
	binary.BigEndian.PutUint32(head[0:], 0x00010000)
	binary.BigEndian.PutUint32(head[12:], 0x5F0F3CF5) // magic
	binary.BigEndian.PutUint16(head[18:], 1000)       // unitsPerEm
	binary.BigEndian.PutUint16(head[50:], 1)          // long loca

	maxp := make([]byte, 32)
	binary.BigEndian.PutUint32(maxp[0:], 0x00010000)
	binary.BigEndian.PutUint16(maxp[4:], uint16(n))

	hhea := make([]byte, 36)
	binary.BigEndian.PutUint32(hhea[0:], 0x00010000)
	binary.BigEndian.PutUint16(hhea[4:], 800) // ascent
	hhea[6], hhea[7] = 0xFF, 0x38             // descent -200
	binary.BigEndian.PutUint16(hhea[34:], uint16(n))

	hmtx := make([]byte, n*4)
	for gid := 0; gid < n; gid++ {
		adv := 500
		if gid < len(opts.advances) {
			adv = opts.advances[gid]
		}
		binary.BigEndian.PutUint16(hmtx[gid*4:], uint16(adv))
	}

	// One empty-contour glyph record per glyph, tagged with its GID so
	// shifts are observable.
	loca := make([]byte, (n+1)*4)
	var glyf []byte
	for gid := 0; gid < n; gid++ {
		binary.BigEndian.PutUint32(loca[gid*4:], uint32(len(glyf)))
		rec := make([]byte, 10)
		binary.BigEndian.PutUint16(rec[2:], uint16(gid)) // xMin as marker
		glyf = append(glyf, rec...)
	}
	binary.BigEndian.PutUint32(loca[n*4:], uint32(len(glyf)))

	post := make([]byte, 34+n*2)
	binary.BigEndian.PutUint32(post[0:], 0x00020000)
	binary.BigEndian.PutUint16(post[32:], uint16(n))
	for gid := 0; gid < n; gid++ {
		idx := uint16(gid + 3) // arbitrary standard names
		if gid == 0 && opts.notdef {
			idx = 0
		}
		binary.BigEndian.PutUint16(post[34+gid*2:], idx)
	}

	os2 := make([]byte, 96)
	binary.BigEndian.PutUint16(os2[8:], opts.fsType)

	b := &fontBuilder{}
	b.addTable("head", head)
	b.addTable("maxp", maxp)
	b.addTable("hhea", hhea)
	b.addTable("hmtx", hmtx)
	b.addTable("loca", loca)
	b.addTable("glyf", glyf)
	b.addTable("post", post)
	b.addTable("OS/2", os2)
	var records []cmapSubtable
	if len(opts.cmap30) > 0 {
		records = append(records, cmapSubtable{
			platformID: 3, encodingID: 0, format: 4,
			data: buildCmapFormat4(opts.cmap30),
		})
	}
	if len(opts.cmap31) > 0 {
		records = append(records, cmapSubtable{
			platformID: 3, encodingID: 1, format: 4,
			data: buildCmapFormat4(opts.cmap31),
		})
	}
	if len(records) > 0 {
		b.addTable("cmap", buildCmapTable(records))
	}
	return b.bytes()
}

// newTestEngine builds an engine that cannot find replacement faces, so
// embedding tests stay hermetic.
func newTestEngine() *Engine {
	return New(Config{FontDirs: []string{"testdata/no-such-dir"}})
}

// testDoc is a one-page document scaffold for traversal and repair
// tests.
type testDoc struct {
	doc  *raw.Document
	page *raw.DictObj
	res  *raw.DictObj
}

func newTestDoc(content string) *testDoc {
	doc := raw.NewDocument()

	res := raw.Dict()
	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Resources"), res)
	if content != "" {
		cs := raw.Dict()
		csRef := doc.Add(raw.NewStream(cs, []byte(content)))
		page.Set(raw.NameLiteral("Contents"), raw.Ref(csRef.Num, csRef.Gen))
	}
	pageRef := doc.Add(page)

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(pageRef.Num, pageRef.Gen)))
	pagesRef := doc.Add(pages)

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	catalogRef := doc.Add(catalog)

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	doc.Trailer = trailer

	return &testDoc{doc: doc, page: page, res: res}
}

// addFont registers a font dictionary under the given resource name and
// returns its indirect reference.
func (td *testDoc) addFont(name string, fontDict *raw.DictObj) raw.ObjectRef {
	ref := td.doc.Add(fontDict)
	fonts, ok := td.doc.DictGetDict(td.res, "Font")
	if !ok {
		f := raw.Dict()
		td.res.Set(raw.NameLiteral("Font"), f)
		fonts = f
	}
	fonts.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
	return ref
}

// simpleFontDict builds a simple font dictionary with an embedded
// program under the given descriptor key.
func (td *testDoc) simpleFontDict(subtype, baseFont, fontFileKey string, program []byte, flags int64) *raw.DictObj {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(subtype))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(baseFont))

	fd := raw.Dict()
	fd.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	fd.Set(raw.NameLiteral("FontName"), raw.NameLiteral(baseFont))
	fd.Set(raw.NameLiteral("Flags"), raw.NumberInt(flags))
	if program != nil {
		st := raw.Dict()
		if fontFileKey == "FontFile3" {
			st.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1C"))
		}
		stRef := td.doc.Add(raw.NewStream(st, program))
		fd.Set(raw.NameLiteral(fontFileKey), raw.Ref(stRef.Num, stRef.Gen))
	}
	fdRef := td.doc.Add(fd)
	dict.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(fdRef.Num, fdRef.Gen))
	return dict
}

// type0FontDict builds a Type0 font with one descendant CIDFont.
func (td *testDoc) type0FontDict(baseFont, descendantSubtype, fontFileKey string, program []byte) (*raw.DictObj, *raw.DictObj) {
	cid := raw.Dict()
	cid.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	cid.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(descendantSubtype))
	cid.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(baseFont))
	sysInfo := raw.Dict()
	sysInfo.Set(raw.NameLiteral("Registry"), raw.Str([]byte("Adobe")))
	sysInfo.Set(raw.NameLiteral("Ordering"), raw.Str([]byte("Identity")))
	sysInfo.Set(raw.NameLiteral("Supplement"), raw.NumberInt(0))
	cid.Set(raw.NameLiteral("CIDSystemInfo"), sysInfo)

	fd := raw.Dict()
	fd.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	fd.Set(raw.NameLiteral("FontName"), raw.NameLiteral(baseFont))
	fd.Set(raw.NameLiteral("Flags"), raw.NumberInt(4))
	if program != nil {
		st := raw.Dict()
		if fontFileKey == "FontFile3" {
			st.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType0C"))
		}
		stRef := td.doc.Add(raw.NewStream(st, program))
		fd.Set(raw.NameLiteral(fontFileKey), raw.Ref(stRef.Num, stRef.Gen))
	}
	fdRef := td.doc.Add(fd)
	cid.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(fdRef.Num, fdRef.Gen))
	cidRef := td.doc.Add(cid)

	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(baseFont))
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	dict.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.Ref(cidRef.Num, cidRef.Gen)))
	return dict, cid
}
