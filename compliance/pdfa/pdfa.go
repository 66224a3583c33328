// Package pdfa implements PDF/A (ISO 19005) conformance levels and the
// font compliance enforcer.
package pdfa

// Level represents a PDF/A conformance level.
type Level int

const (
	PDFA1A Level = iota
	PDFA1B
	PDFA2A
	PDFA2B
	PDFA2U
	PDFA3A
	PDFA3B
	PDFA3U
	PDFA4
	PDFA4E
	PDFA4F
)

func (l Level) String() string {
	switch l {
	case PDFA1A:
		return "PDF/A-1a"
	case PDFA1B:
		return "PDF/A-1b"
	case PDFA2A:
		return "PDF/A-2a"
	case PDFA2B:
		return "PDF/A-2b"
	case PDFA2U:
		return "PDF/A-2u"
	case PDFA3A:
		return "PDF/A-3a"
	case PDFA3B:
		return "PDF/A-3b"
	case PDFA3U:
		return "PDF/A-3u"
	case PDFA4:
		return "PDF/A-4"
	case PDFA4E:
		return "PDF/A-4e"
	case PDFA4F:
		return "PDF/A-4f"
	default:
		return "Unknown"
	}
}

// ParseLevel maps a level name like "2b" or "PDF/A-2b" to a Level.
func ParseLevel(s string) (Level, bool) {
	for l := PDFA1A; l <= PDFA4F; l++ {
		if l.String() == s || l.String()[6:] == s {
			return l, true
		}
	}
	return 0, false
}

// IsLevelA1 returns true if the level is PDF/A-1.
func (l Level) IsLevelA1() bool { return l == PDFA1A || l == PDFA1B }

// IsLevelA2 returns true if the level is PDF/A-2.
func (l Level) IsLevelA2() bool { return l == PDFA2A || l == PDFA2B || l == PDFA2U }

// IsLevelA3 returns true if the level is PDF/A-3.
func (l Level) IsLevelA3() bool { return l == PDFA3A || l == PDFA3B || l == PDFA3U }

// IsLevelA4 returns true if the level is PDF/A-4.
func (l Level) IsLevelA4() bool { return l == PDFA4 || l == PDFA4E || l == PDFA4F }

// RequiresUnicodeMapping returns true when every glyph used in content
// must be mappable to Unicode: the accessibility (a) and Unicode (u)
// conformance levels, and all of PDF/A-4.
func (l Level) RequiresUnicodeMapping() bool {
	switch l {
	case PDFA1A, PDFA2A, PDFA2U, PDFA3A, PDFA3U:
		return true
	}
	return l.IsLevelA4()
}

// AllowsTransparency returns true if the level allows transparency (A-2+).
func (l Level) AllowsTransparency() bool { return !l.IsLevelA1() }

// AllowsAttachment returns true if the level allows file attachments.
func (l Level) AllowsAttachment() bool { return !l.IsLevelA1() }

// AllowsArbitraryAttachment returns true if the level allows non-PDF/A
// attachments.
func (l Level) AllowsArbitraryAttachment() bool {
	return l.IsLevelA3() || l == PDFA4 || l == PDFA4F
}
