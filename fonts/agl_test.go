package fonts

import "testing"

func TestGlyphNameToRune(t *testing.T) {
	cases := []struct {
		name string
		want rune
		ok   bool
	}{
		{"A", 'A', true},
		{"adieresis", 0x00E4, true},
		{"Euro", 0x20AC, true},
		{"fi", 0xFB01, true},
		{"uni4E2D", 0x4E2D, true},
		{"uni00410042", 0x0041, true}, // first component decides
		{"u1F600", 0x1F600, true},
		{"a.sc", 'a', true}, // variant suffix ignored
		{".notdef", 0, false},
		{"", 0, false},
		{"uniD800", 0, false}, // surrogate
		{"g123456", 0, false},
	}
	for _, c := range cases {
		got, ok := GlyphNameToRune(c.name)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("GlyphNameToRune(%q) = %U, %v; want %U, %v", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestRuneToGlyphNameRoundTrip(t *testing.T) {
	for _, r := range []rune{'A', 0x00E4, 0x20AC, 0x4E2D, 0x1F600} {
		name := RuneToGlyphName(r)
		back, ok := GlyphNameToRune(name)
		if !ok || back != r {
			t.Errorf("round trip %U via %q gave %U, %v", r, name, back, ok)
		}
	}
	if got := RuneToGlyphName(0x4E2D); got != "uni4E2D" {
		t.Errorf("BMP fallback = %q", got)
	}
	if got := RuneToGlyphName(0x1F600); got != "u01F600" {
		t.Errorf("supplementary fallback = %q", got)
	}
}

func TestBaseEncodingToRune(t *testing.T) {
	cases := []struct {
		enc  string
		code byte
		want rune
		ok   bool
	}{
		{"WinAnsiEncoding", 'A', 'A', true},
		{"WinAnsiEncoding", 0x80, 0x20AC, true}, // Euro
		{"MacRomanEncoding", 0x8A, 0x00E4, true},
		{"StandardEncoding", 'a', 'a', true},
	}
	for _, c := range cases {
		got, ok := BaseEncodingToRune(c.enc, c.code)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("BaseEncodingToRune(%s, %#x) = %U, %v; want %U", c.enc, c.code, got, ok, c.want)
		}
	}
}

func TestSymbolDingbatsBuiltins(t *testing.T) {
	if r, ok := SymbolCodeToRune(0x61); !ok || r != 0x03B1 { // alpha
		t.Errorf("Symbol 0x61 = %U, %v", r, ok)
	}
	if _, ok := DingbatsCodeToRune(0x21); !ok {
		t.Errorf("Dingbats 0x21 should resolve")
	}
}
