package fonts

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Byte-to-rune views of the simple font base encodings. WinAnsi and
// MacRoman coincide with Windows-1252 and Mac OS Roman; Standard is
// ASCII with Adobe's historical substitutions and upper half.

// WinAnsiToRune maps a WinAnsiEncoding code to Unicode.
func WinAnsiToRune(code byte) (rune, bool) {
	r := charmap.Windows1252.DecodeByte(code)
	if r == utf8.RuneError {
		return 0, false
	}
	return r, true
}

// MacRomanToRune maps a MacRomanEncoding code to Unicode.
func MacRomanToRune(code byte) (rune, bool) {
	r := charmap.Macintosh.DecodeByte(code)
	if r == utf8.RuneError {
		return 0, false
	}
	return r, true
}

// standardHigh holds StandardEncoding codes that differ from ASCII.
var standardHigh = map[byte]rune{
	0x27: 0x2019, // quoteright
	0x60: 0x2018, // quoteleft
	0xA1: 0x00A1, 0xA2: 0x00A2, 0xA3: 0x00A3, 0xA4: 0x2044,
	0xA5: 0x00A5, 0xA6: 0x0192, 0xA7: 0x00A7, 0xA8: 0x00A4,
	0xA9: 0x0027, 0xAA: 0x201C, 0xAB: 0x00AB, 0xAC: 0x2039,
	0xAD: 0x203A, 0xAE: 0xFB01, 0xAF: 0xFB02,
	0xB1: 0x2013, 0xB2: 0x2020, 0xB3: 0x2021, 0xB4: 0x00B7,
	0xB6: 0x00B6, 0xB7: 0x2022, 0xB8: 0x201A, 0xB9: 0x201E,
	0xBA: 0x201D, 0xBB: 0x00BB, 0xBC: 0x2026, 0xBD: 0x2030,
	0xBF: 0x00BF,
	0xC1: 0x0060, 0xC2: 0x00B4, 0xC3: 0x02C6, 0xC4: 0x02DC,
	0xC5: 0x00AF, 0xC6: 0x02D8, 0xC7: 0x02D9, 0xC8: 0x00A8,
	0xCA: 0x02DA, 0xCB: 0x00B8, 0xCD: 0x02DD, 0xCE: 0x02DB,
	0xCF: 0x02C7, 0xD0: 0x2014,
	0xE1: 0x00C6, 0xE3: 0x00AA, 0xE8: 0x0141, 0xE9: 0x00D8,
	0xEA: 0x0152, 0xEB: 0x00BA,
	0xF1: 0x00E6, 0xF5: 0x0131, 0xF8: 0x0142, 0xF9: 0x00F8,
	0xFA: 0x0153, 0xFB: 0x00DF,
}

// StandardToRune maps a StandardEncoding code to Unicode.
func StandardToRune(code byte) (rune, bool) {
	if r, ok := standardHigh[code]; ok {
		return r, true
	}
	if code >= 0x20 && code <= 0x7E {
		return rune(code), true
	}
	return 0, false
}

// BaseEncodingToRune maps a code through a named base encoding. An empty
// name selects StandardEncoding, the implicit default for simple fonts.
func BaseEncodingToRune(name string, code byte) (rune, bool) {
	switch name {
	case "WinAnsiEncoding":
		return WinAnsiToRune(code)
	case "MacRomanEncoding":
		return MacRomanToRune(code)
	case "MacExpertEncoding":
		// Expert set glyphs have no simple Unicode view.
		return 0, false
	default:
		return StandardToRune(code)
	}
}
