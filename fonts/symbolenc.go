package fonts

// Code→Unicode views of the Symbol and ZapfDingbats built-in encodings,
// used when those faces are replaced: the replacement carries Unicode
// cmaps, so document codes must be re-expressed through /Differences.

// symbolEncoding maps Adobe Symbol font codes to Unicode.
var symbolEncoding = map[byte]rune{
	0x20: 0x0020, 0x21: 0x0021, 0x22: 0x2200, 0x23: 0x0023,
	0x24: 0x2203, 0x25: 0x0025, 0x26: 0x0026, 0x27: 0x220B,
	0x28: 0x0028, 0x29: 0x0029, 0x2A: 0x2217, 0x2B: 0x002B,
	0x2C: 0x002C, 0x2D: 0x2212, 0x2E: 0x002E, 0x2F: 0x002F,
	0x30: '0', 0x31: '1', 0x32: '2', 0x33: '3', 0x34: '4',
	0x35: '5', 0x36: '6', 0x37: '7', 0x38: '8', 0x39: '9',
	0x3A: 0x003A, 0x3B: 0x003B, 0x3C: 0x003C, 0x3D: 0x003D,
	0x3E: 0x003E, 0x3F: 0x003F, 0x40: 0x2245,
	0x41: 0x0391, 0x42: 0x0392, 0x43: 0x03A7, 0x44: 0x0394,
	0x45: 0x0395, 0x46: 0x03A6, 0x47: 0x0393, 0x48: 0x0397,
	0x49: 0x0399, 0x4A: 0x03D1, 0x4B: 0x039A, 0x4C: 0x039B,
	0x4D: 0x039C, 0x4E: 0x039D, 0x4F: 0x039F, 0x50: 0x03A0,
	0x51: 0x0398, 0x52: 0x03A1, 0x53: 0x03A3, 0x54: 0x03A4,
	0x55: 0x03A5, 0x56: 0x03C2, 0x57: 0x03A9, 0x58: 0x039E,
	0x59: 0x03A8, 0x5A: 0x0396, 0x5B: 0x005B, 0x5C: 0x2234,
	0x5D: 0x005D, 0x5E: 0x22A5, 0x5F: 0x005F,
	0x61: 0x03B1, 0x62: 0x03B2, 0x63: 0x03C7, 0x64: 0x03B4,
	0x65: 0x03B5, 0x66: 0x03C6, 0x67: 0x03B3, 0x68: 0x03B7,
	0x69: 0x03B9, 0x6A: 0x03D5, 0x6B: 0x03BA, 0x6C: 0x03BB,
	0x6D: 0x03BC, 0x6E: 0x03BD, 0x6F: 0x03BF, 0x70: 0x03C0,
	0x71: 0x03B8, 0x72: 0x03C1, 0x73: 0x03C3, 0x74: 0x03C4,
	0x75: 0x03C5, 0x76: 0x03D6, 0x77: 0x03C9, 0x78: 0x03BE,
	0x79: 0x03C8, 0x7A: 0x03B6, 0x7B: 0x007B, 0x7C: 0x007C,
	0x7D: 0x007D, 0x7E: 0x223C,
	0xA0: 0x20AC, 0xA1: 0x03D2, 0xA2: 0x2032, 0xA3: 0x2264,
	0xA4: 0x2044, 0xA5: 0x221E, 0xA6: 0x0192, 0xA7: 0x2663,
	0xA8: 0x2666, 0xA9: 0x2665, 0xAA: 0x2660, 0xAB: 0x2194,
	0xAC: 0x2190, 0xAD: 0x2191, 0xAE: 0x2192, 0xAF: 0x2193,
	0xB0: 0x00B0, 0xB1: 0x00B1, 0xB2: 0x2033, 0xB3: 0x2265,
	0xB4: 0x00D7, 0xB5: 0x221D, 0xB6: 0x2202, 0xB7: 0x2022,
	0xB8: 0x00F7, 0xB9: 0x2260, 0xBA: 0x2261, 0xBB: 0x2248,
	0xBC: 0x2026, 0xC0: 0x2135, 0xC1: 0x2111, 0xC2: 0x211C,
	0xC3: 0x2118, 0xC4: 0x2297, 0xC5: 0x2295, 0xC6: 0x2205,
	0xC7: 0x2229, 0xC8: 0x222A, 0xC9: 0x2283, 0xCA: 0x2287,
	0xCB: 0x2284, 0xCC: 0x2282, 0xCD: 0x2286, 0xCE: 0x2208,
	0xCF: 0x2209, 0xD0: 0x2220, 0xD1: 0x2207, 0xD5: 0x220F,
	0xD6: 0x221A, 0xD7: 0x22C5, 0xD8: 0x00AC, 0xD9: 0x2227,
	0xDA: 0x2228, 0xDB: 0x21D4, 0xDC: 0x21D0, 0xDD: 0x21D1,
	0xDE: 0x21D2, 0xDF: 0x21D3, 0xE5: 0x2211, 0xF2: 0x222B,
}

// SymbolCodeToRune maps a Symbol encoding code to Unicode.
func SymbolCodeToRune(code byte) (rune, bool) {
	r, ok := symbolEncoding[code]
	return r, ok
}

// DingbatsCodeToRune maps a ZapfDingbats encoding code to Unicode. The
// low range tracks the Dingbats Unicode block directly; the handful of
// glyphs Unicode placed elsewhere are corrected explicitly.
func DingbatsCodeToRune(code byte) (rune, bool) {
	switch code {
	case 0x20:
		return 0x0020, true
	case 0x74:
		return 0x25B2, true // filled triangle up
	case 0x75:
		return 0x25BC, true // filled triangle down
	case 0x76:
		return 0x25C6, true // filled diamond
	case 0x78:
		return 0x2758, true
	}
	if code >= 0x21 && code <= 0x7E {
		return 0x2700 + rune(code) - 0x20, true
	}
	if code >= 0xA1 && code <= 0xEF {
		// Ornamental punctuation and arrows in the 0x2761+ range.
		return 0x2761 + rune(code) - 0xA1, true
	}
	return 0, false
}
