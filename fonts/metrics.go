package fonts

import (
	"encoding/binary"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Descriptor flag bits.
const (
	flagFixedPitch  = 1 << 0
	flagSerif       = 1 << 1
	flagSymbolic    = 1 << 2
	flagScript      = 1 << 3
	flagNonsymbolic = 1 << 5
	flagItalic      = 1 << 6
)

// faceMetrics holds the descriptor values derived from a font program,
// in 1000-unit text space.
type faceMetrics struct {
	FontBBox    [4]float64
	ItalicAngle float64
	Ascent      float64
	Descent     float64
	CapHeight   float64
	StemV       float64
	Flags       int64
}

// computeFaceMetrics derives descriptor metrics from the head, hhea,
// OS/2 and post tables. Values are scaled by 1000/unitsPerEm. CapHeight
// falls back to 700 when OS/2 does not carry one; StemV is estimated
// from the weight class since TrueType fonts carry no stem data.
func computeFaceMetrics(f *sfntFont, symbolic bool) *faceMetrics {
	upem := float64(f.unitsPerEm())
	scale := func(v int) float64 { return float64(v) * 1000 / upem }

	m := &faceMetrics{CapHeight: 700, StemV: 80}

	if head, err := f.table("head"); err == nil && len(head) >= 44 {
		m.FontBBox = [4]float64{
			scale(int(int16(binary.BigEndian.Uint16(head[36:38])))),
			scale(int(int16(binary.BigEndian.Uint16(head[38:40])))),
			scale(int(int16(binary.BigEndian.Uint16(head[40:42])))),
			scale(int(int16(binary.BigEndian.Uint16(head[42:44])))),
		}
	}

	if hhea, err := f.table("hhea"); err == nil && len(hhea) >= 8 {
		m.Ascent = scale(int(int16(binary.BigEndian.Uint16(hhea[4:6]))))
		m.Descent = scale(int(int16(binary.BigEndian.Uint16(hhea[6:8]))))
	}

	var weight float64 = 400
	var familyClass int
	var italicSelection bool
	if os2, err := f.table("OS/2"); err == nil && len(os2) >= 64 {
		version := binary.BigEndian.Uint16(os2[0:2])
		weight = float64(binary.BigEndian.Uint16(os2[4:6]))
		familyClass = int(int16(binary.BigEndian.Uint16(os2[30:32]))) >> 8
		italicSelection = binary.BigEndian.Uint16(os2[62:64])&1 != 0
		if version >= 2 && len(os2) >= 90 {
			if capHeight := int(int16(binary.BigEndian.Uint16(os2[88:90]))); capHeight > 0 {
				m.CapHeight = scale(capHeight)
			}
		}
	}

	fixedPitch := false
	if post, err := f.table("post"); err == nil && len(post) >= 16 {
		m.ItalicAngle = float64(int32(binary.BigEndian.Uint32(post[4:8]))) / 65536
		fixedPitch = binary.BigEndian.Uint32(post[12:16]) != 0
	}

	// Stem width estimate from the weight class.
	m.StemV = 10 + 220*(weight/1000)*(weight/1000)

	var flags int64
	if fixedPitch {
		flags |= flagFixedPitch
	}
	if familyClass >= 1 && familyClass <= 7 {
		flags |= flagSerif
	}
	if familyClass == 10 {
		flags |= flagScript
	}
	if symbolic {
		flags |= flagSymbolic
	} else {
		flags |= flagNonsymbolic
	}
	if italicSelection || m.ItalicAngle != 0 {
		flags |= flagItalic
	}
	m.Flags = flags
	return m
}

// buildFontDescriptor assembles a FontDescriptor dictionary. fontFileKey
// names the embedding slot (FontFile2 for TrueType programs) and
// fontFileRef points at the already-added program stream.
func buildFontDescriptor(name string, m *faceMetrics, fontFileKey string, fontFileRef raw.ObjectRef) *raw.DictObj {
	fd := raw.Dict()
	fd.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	fd.Set(raw.NameLiteral("FontName"), raw.NameLiteral(name))
	fd.Set(raw.NameLiteral("Flags"), raw.NumberInt(m.Flags))
	fd.Set(raw.NameLiteral("FontBBox"), raw.NewArray(
		raw.NumberFloat(m.FontBBox[0]), raw.NumberFloat(m.FontBBox[1]),
		raw.NumberFloat(m.FontBBox[2]), raw.NumberFloat(m.FontBBox[3])))
	fd.Set(raw.NameLiteral("ItalicAngle"), raw.NumberFloat(m.ItalicAngle))
	fd.Set(raw.NameLiteral("Ascent"), raw.NumberFloat(m.Ascent))
	fd.Set(raw.NameLiteral("Descent"), raw.NumberFloat(m.Descent))
	fd.Set(raw.NameLiteral("CapHeight"), raw.NumberFloat(m.CapHeight))
	fd.Set(raw.NameLiteral("StemV"), raw.NumberFloat(m.StemV))
	fd.Set(raw.NameLiteral(fontFileKey), raw.Ref(fontFileRef.Num, fontFileRef.Gen))
	return fd
}
