package fonts

import (
	"fmt"
	"strconv"
	"strings"
)

// Adobe Glyph List support. The table below covers the names reachable
// from the simple-font base encodings plus Greek and the common symbol
// and ligature names; the uniXXXX and uXXXXXX conventions cover the
// rest of Unicode.

// GlyphNameToRune resolves a glyph name using AGL conventions: a direct
// table lookup, the uniXXXX and uXXXX[XX] forms, and the rule that a
// period starts a variant suffix to be ignored ("a.sc" resolves as "a").
func GlyphNameToRune(name string) (rune, bool) {
	if name == "" || name == ".notdef" {
		return 0, false
	}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	if r, ok := aglMap[name]; ok {
		return r, true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		// uniXXXX, possibly several groups; the first component decides.
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return checkedRune(rune(v))
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return checkedRune(rune(v))
		}
	}
	return 0, false
}

// IsAGLName reports whether name resolves under the AGL conventions.
// Archival TrueType encoding differences must use only such names.
func IsAGLName(name string) bool {
	_, ok := GlyphNameToRune(name)
	return ok
}

func checkedRune(r rune) (rune, bool) {
	if r <= 0 || (r >= 0xD800 && r <= 0xDFFF) || r > 0x10FFFF {
		return 0, false
	}
	return r, true
}

// RuneToGlyphName gives the preferred AGL name for a rune, falling back
// to the uniXXXX convention inside the BMP and uXXXXXX above it.
func RuneToGlyphName(r rune) string {
	if name, ok := aglReverse[r]; ok {
		return name
	}
	if r <= 0xFFFF {
		return fmt.Sprintf("uni%04X", r)
	}
	return fmt.Sprintf("u%06X", r)
}

var aglReverse = func() map[rune]string {
	m := make(map[rune]string, len(aglMap))
	for name, r := range aglMap {
		if _, taken := m[r]; !taken {
			m[r] = name
		}
	}
	return m
}()

var aglMap = map[string]rune{
	"space": 0x0020, "exclam": 0x0021, "quotedbl": 0x0022, "numbersign": 0x0023,
	"dollar": 0x0024, "percent": 0x0025, "ampersand": 0x0026, "quotesingle": 0x0027,
	"parenleft": 0x0028, "parenright": 0x0029, "asterisk": 0x002A, "plus": 0x002B,
	"comma": 0x002C, "hyphen": 0x002D, "period": 0x002E, "slash": 0x002F,
	"zero": 0x0030, "one": 0x0031, "two": 0x0032, "three": 0x0033, "four": 0x0034,
	"five": 0x0035, "six": 0x0036, "seven": 0x0037, "eight": 0x0038, "nine": 0x0039,
	"colon": 0x003A, "semicolon": 0x003B, "less": 0x003C, "equal": 0x003D,
	"greater": 0x003E, "question": 0x003F, "at": 0x0040,
	"A": 0x0041, "B": 0x0042, "C": 0x0043, "D": 0x0044, "E": 0x0045, "F": 0x0046,
	"G": 0x0047, "H": 0x0048, "I": 0x0049, "J": 0x004A, "K": 0x004B, "L": 0x004C,
	"M": 0x004D, "N": 0x004E, "O": 0x004F, "P": 0x0050, "Q": 0x0051, "R": 0x0052,
	"S": 0x0053, "T": 0x0054, "U": 0x0055, "V": 0x0056, "W": 0x0057, "X": 0x0058,
	"Y": 0x0059, "Z": 0x005A,
	"bracketleft": 0x005B, "backslash": 0x005C, "bracketright": 0x005D,
	"asciicircum": 0x005E, "underscore": 0x005F, "grave": 0x0060,
	"a": 0x0061, "b": 0x0062, "c": 0x0063, "d": 0x0064, "e": 0x0065, "f": 0x0066,
	"g": 0x0067, "h": 0x0068, "i": 0x0069, "j": 0x006A, "k": 0x006B, "l": 0x006C,
	"m": 0x006D, "n": 0x006E, "o": 0x006F, "p": 0x0070, "q": 0x0071, "r": 0x0072,
	"s": 0x0073, "t": 0x0074, "u": 0x0075, "v": 0x0076, "w": 0x0077, "x": 0x0078,
	"y": 0x0079, "z": 0x007A,
	"braceleft": 0x007B, "bar": 0x007C, "braceright": 0x007D, "asciitilde": 0x007E,

	"exclamdown": 0x00A1, "cent": 0x00A2, "sterling": 0x00A3, "currency": 0x00A4,
	"yen": 0x00A5, "brokenbar": 0x00A6, "section": 0x00A7, "dieresis": 0x00A8,
	"copyright": 0x00A9, "ordfeminine": 0x00AA, "guillemotleft": 0x00AB,
	"logicalnot": 0x00AC, "registered": 0x00AE, "macron": 0x00AF,
	"degree": 0x00B0, "plusminus": 0x00B1, "twosuperior": 0x00B2,
	"threesuperior": 0x00B3, "acute": 0x00B4, "mu": 0x00B5, "paragraph": 0x00B6,
	"periodcentered": 0x00B7, "cedilla": 0x00B8, "onesuperior": 0x00B9,
	"ordmasculine": 0x00BA, "guillemotright": 0x00BB, "onequarter": 0x00BC,
	"onehalf": 0x00BD, "threequarters": 0x00BE, "questiondown": 0x00BF,
	"Agrave": 0x00C0, "Aacute": 0x00C1, "Acircumflex": 0x00C2, "Atilde": 0x00C3,
	"Adieresis": 0x00C4, "Aring": 0x00C5, "AE": 0x00C6, "Ccedilla": 0x00C7,
	"Egrave": 0x00C8, "Eacute": 0x00C9, "Ecircumflex": 0x00CA, "Edieresis": 0x00CB,
	"Igrave": 0x00CC, "Iacute": 0x00CD, "Icircumflex": 0x00CE, "Idieresis": 0x00CF,
	"Eth": 0x00D0, "Ntilde": 0x00D1, "Ograve": 0x00D2, "Oacute": 0x00D3,
	"Ocircumflex": 0x00D4, "Otilde": 0x00D5, "Odieresis": 0x00D6, "multiply": 0x00D7,
	"Oslash": 0x00D8, "Ugrave": 0x00D9, "Uacute": 0x00DA, "Ucircumflex": 0x00DB,
	"Udieresis": 0x00DC, "Yacute": 0x00DD, "Thorn": 0x00DE, "germandbls": 0x00DF,
	"agrave": 0x00E0, "aacute": 0x00E1, "acircumflex": 0x00E2, "atilde": 0x00E3,
	"adieresis": 0x00E4, "aring": 0x00E5, "ae": 0x00E6, "ccedilla": 0x00E7,
	"egrave": 0x00E8, "eacute": 0x00E9, "ecircumflex": 0x00EA, "edieresis": 0x00EB,
	"igrave": 0x00EC, "iacute": 0x00ED, "icircumflex": 0x00EE, "idieresis": 0x00EF,
	"eth": 0x00F0, "ntilde": 0x00F1, "ograve": 0x00F2, "oacute": 0x00F3,
	"ocircumflex": 0x00F4, "otilde": 0x00F5, "odieresis": 0x00F6, "divide": 0x00F7,
	"oslash": 0x00F8, "ugrave": 0x00F9, "uacute": 0x00FA, "ucircumflex": 0x00FB,
	"udieresis": 0x00FC, "yacute": 0x00FD, "thorn": 0x00FE, "ydieresis": 0x00FF,

	"Amacron": 0x0100, "amacron": 0x0101, "Abreve": 0x0102, "abreve": 0x0103,
	"Aogonek": 0x0104, "aogonek": 0x0105, "Cacute": 0x0106, "cacute": 0x0107,
	"Ccaron": 0x010C, "ccaron": 0x010D, "Dcaron": 0x010E, "dcaron": 0x010F,
	"Dcroat": 0x0110, "dcroat": 0x0111, "Emacron": 0x0112, "emacron": 0x0113,
	"Edotaccent": 0x0116, "edotaccent": 0x0117, "Eogonek": 0x0118, "eogonek": 0x0119,
	"Ecaron": 0x011A, "ecaron": 0x011B, "Gbreve": 0x011E, "gbreve": 0x011F,
	"Gcommaaccent": 0x0122, "gcommaaccent": 0x0123,
	"Imacron": 0x012A, "imacron": 0x012B, "Iogonek": 0x012E, "iogonek": 0x012F,
	"Idotaccent": 0x0130, "dotlessi": 0x0131,
	"Kcommaaccent": 0x0136, "kcommaaccent": 0x0137,
	"Lacute": 0x0139, "lacute": 0x013A, "Lcommaaccent": 0x013B, "lcommaaccent": 0x013C,
	"Lcaron": 0x013D, "lcaron": 0x013E, "Lslash": 0x0141, "lslash": 0x0142,
	"Nacute": 0x0143, "nacute": 0x0144, "Ncommaaccent": 0x0145, "ncommaaccent": 0x0146,
	"Ncaron": 0x0147, "ncaron": 0x0148, "Omacron": 0x014C, "omacron": 0x014D,
	"Ohungarumlaut": 0x0150, "ohungarumlaut": 0x0151, "OE": 0x0152, "oe": 0x0153,
	"Racute": 0x0154, "racute": 0x0155, "Rcommaaccent": 0x0156, "rcommaaccent": 0x0157,
	"Rcaron": 0x0158, "rcaron": 0x0159, "Sacute": 0x015A, "sacute": 0x015B,
	"Scedilla": 0x015E, "scedilla": 0x015F, "Scaron": 0x0160, "scaron": 0x0161,
	"Tcaron": 0x0164, "tcaron": 0x0165, "Umacron": 0x016A, "umacron": 0x016B,
	"Uring": 0x016E, "uring": 0x016F, "Uhungarumlaut": 0x0170, "uhungarumlaut": 0x0171,
	"Uogonek": 0x0172, "uogonek": 0x0173, "Wcircumflex": 0x0174, "wcircumflex": 0x0175,
	"Ycircumflex": 0x0176, "ycircumflex": 0x0177, "Ydieresis": 0x0178,
	"Zacute": 0x0179, "zacute": 0x017A, "Zdotaccent": 0x017B, "zdotaccent": 0x017C,
	"Zcaron": 0x017D, "zcaron": 0x017E, "florin": 0x0192,

	"circumflex": 0x02C6, "caron": 0x02C7, "breve": 0x02D8, "dotaccent": 0x02D9,
	"ring": 0x02DA, "ogonek": 0x02DB, "tilde": 0x02DC, "hungarumlaut": 0x02DD,

	"Alpha": 0x0391, "Beta": 0x0392, "Gamma": 0x0393, "Delta": 0x0394,
	"Epsilon": 0x0395, "Zeta": 0x0396, "Eta": 0x0397, "Theta": 0x0398,
	"Iota": 0x0399, "Kappa": 0x039A, "Lambda": 0x039B, "Mu": 0x039C,
	"Nu": 0x039D, "Xi": 0x039E, "Omicron": 0x039F, "Pi": 0x03A0, "Rho": 0x03A1,
	"Sigma": 0x03A3, "Tau": 0x03A4, "Upsilon": 0x03A5, "Phi": 0x03A6,
	"Chi": 0x03A7, "Psi": 0x03A8, "Omega": 0x03A9,
	"alpha": 0x03B1, "beta": 0x03B2, "gamma": 0x03B3, "delta": 0x03B4,
	"epsilon": 0x03B5, "zeta": 0x03B6, "eta": 0x03B7, "theta": 0x03B8,
	"iota": 0x03B9, "kappa": 0x03BA, "lambda": 0x03BB, "nu": 0x03BD,
	"xi": 0x03BE, "omicron": 0x03BF, "pi": 0x03C0, "rho": 0x03C1,
	"sigma1": 0x03C2, "sigma": 0x03C3, "tau": 0x03C4, "upsilon": 0x03C5,
	"phi": 0x03C6, "chi": 0x03C7, "psi": 0x03C8, "omega": 0x03C9,

	"endash": 0x2013, "emdash": 0x2014, "quoteleft": 0x2018, "quoteright": 0x2019,
	"quotesinglbase": 0x201A, "quotedblleft": 0x201C, "quotedblright": 0x201D,
	"quotedblbase": 0x201E, "dagger": 0x2020, "daggerdbl": 0x2021, "bullet": 0x2022,
	"ellipsis": 0x2026, "perthousand": 0x2030, "guilsinglleft": 0x2039,
	"guilsinglright": 0x203A, "fraction": 0x2044, "Euro": 0x20AC,
	"trademark": 0x2122, "partialdiff": 0x2202, "Delta2": 0x2206,
	"product": 0x220F, "summation": 0x2211, "minus": 0x2212, "radical": 0x221A,
	"infinity": 0x221E, "integral": 0x222B, "approxequal": 0x2248,
	"notequal": 0x2260, "lessequal": 0x2264, "greaterequal": 0x2265,
	"lozenge": 0x25CA, "apple": 0xF8FF, "fi": 0xFB01, "fl": 0xFB02,
}
