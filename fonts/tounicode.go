package fonts

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wudi/pdfarchive/contentstream"
)

// CodeMap maps character codes to their Unicode expansion. Codes are
// single bytes for simple fonts and two-byte values for Identity CID
// fonts; the map does not record the width, the caller tracks it.
type CodeMap map[uint32][]rune

const (
	puaFirst = 0xE000
	puaLast  = 0xF8FF
)

// ParseToUnicode extracts the code→Unicode mapping from a ToUnicode CMap
// stream. bfchar and bfrange sections are honored, including the array
// form of bfrange. Everything else in the CMap program is ignored.
func ParseToUnicode(data []byte) (CodeMap, error) {
	ops, err := contentstream.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse cmap program: %w", err)
	}
	m := make(CodeMap)
	for _, op := range ops {
		switch op.Operator {
		case "endbfchar":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				src, ok1 := op.Operands[i].(contentstream.StringOperand)
				dst, ok2 := op.Operands[i+1].(contentstream.StringOperand)
				if !ok1 || !ok2 {
					continue
				}
				m[codeValue(src.Value)] = decodeUTF16BE(dst.Value)
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Operands); i += 3 {
				lo, ok1 := op.Operands[i].(contentstream.StringOperand)
				hi, ok2 := op.Operands[i+1].(contentstream.StringOperand)
				if !ok1 || !ok2 {
					continue
				}
				loV, hiV := codeValue(lo.Value), codeValue(hi.Value)
				if hiV < loV || hiV-loV > 0xFFFF {
					continue
				}
				switch dst := op.Operands[i+2].(type) {
				case contentstream.StringOperand:
					base := decodeUTF16BE(dst.Value)
					for c := loV; c <= hiV; c++ {
						rs := append([]rune(nil), base...)
						if len(rs) > 0 {
							rs[len(rs)-1] += rune(c - loV)
						}
						m[c] = rs
					}
				case contentstream.ArrayOperand:
					for j, item := range dst.Items {
						s, ok := item.(contentstream.StringOperand)
						if !ok {
							continue
						}
						m[loV+uint32(j)] = decodeUTF16BE(s.Value)
					}
				}
			}
		}
	}
	return m, nil
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

// decodeUTF16BE decodes big-endian UTF-16, keeping unpaired surrogates
// as their raw code unit so sanitization can detect them.
func decodeUTF16BE(b []byte) []rune {
	var out []rune
	for i := 0; i+1 < len(b); i += 2 {
		u := rune(b[i])<<8 | rune(b[i+1])
		if u >= 0xD800 && u <= 0xDBFF && i+3 < len(b) {
			lo := rune(b[i+2])<<8 | rune(b[i+3])
			if lo >= 0xDC00 && lo <= 0xDFFF {
				out = append(out, 0x10000+(u-0xD800)<<10+(lo-0xDC00))
				i += 2
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

func encodeUTF16BEHex(rs []rune) string {
	var buf bytes.Buffer
	for _, r := range rs {
		if r > 0xFFFF {
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			fmt.Fprintf(&buf, "%04X%04X", hi, lo)
		} else {
			fmt.Fprintf(&buf, "%04X", r)
		}
	}
	return buf.String()
}

// FormatToUnicode serializes a CodeMap as a ToUnicode CMap program.
// codeBytes is 1 for simple fonts and 2 for Identity CID keyed fonts;
// bfchar sections are emitted in chunks of at most 100 entries as the
// CMap specification requires.
func FormatToUnicode(m CodeMap, codeBytes int) []byte {
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, int(c))
	}
	sort.Ints(codes)

	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\n")
	b.WriteString("begincmap\n")
	b.WriteString("/CIDSystemInfo <</Registry (Adobe) /Ordering (UCS) /Supplement 0>> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n")
	b.WriteString("/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n")
	if codeBytes == 1 {
		b.WriteString("<00> <FF>\n")
	} else {
		b.WriteString("<0000> <FFFF>\n")
	}
	b.WriteString("endcodespacerange\n")

	for start := 0; start < len(codes); start += 100 {
		end := start + 100
		if end > len(codes) {
			end = len(codes)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-start)
		for _, c := range codes[start:end] {
			if codeBytes == 1 {
				fmt.Fprintf(&b, "<%02X> <%s>\n", c, encodeUTF16BEHex(m[uint32(c)]))
			} else {
				fmt.Fprintf(&b, "<%04X> <%s>\n", c, encodeUTF16BEHex(m[uint32(c)]))
			}
		}
		b.WriteString("endbfchar\n")
	}

	b.WriteString("endcmap\n")
	b.WriteString("CMapName currentdict /CMap defineresource pop\n")
	b.WriteString("end\nend\n")
	return b.Bytes()
}

// forbiddenUnicode reports whether a mapping target violates the
// archival ToUnicode rules: empty, U+0000, byte order marks, or raw
// surrogate code units.
func forbiddenUnicode(rs []rune) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		switch {
		case r == 0x0000, r == 0xFEFF, r == 0xFFFE:
			return true
		case r >= 0xD800 && r <= 0xDFFF:
			return true
		}
	}
	return false
}

// puaAllocator hands out unused Private Use Area code points, skipping
// values the mapping already targets.
type puaAllocator struct {
	used map[rune]bool
	next rune
}

func newPUAAllocator(m CodeMap) *puaAllocator {
	used := make(map[rune]bool)
	for _, rs := range m {
		for _, r := range rs {
			if r >= puaFirst && r <= puaLast {
				used[r] = true
			}
		}
	}
	return &puaAllocator{used: used, next: puaFirst}
}

// alloc returns the next free PUA code point, or 0 when the area is
// exhausted.
func (a *puaAllocator) alloc() rune {
	for a.next <= puaLast {
		r := a.next
		a.next++
		if !a.used[r] {
			a.used[r] = true
			return r
		}
	}
	return 0
}

// sanitizeCodeMap replaces forbidden mapping targets with fresh PUA code
// points, processing codes in ascending order so allocation is
// deterministic. It returns the list of rewritten codes.
func sanitizeCodeMap(m CodeMap) []uint32 {
	var bad []uint32
	for c, rs := range m {
		if forbiddenUnicode(rs) {
			bad = append(bad, c)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })

	alloc := newPUAAllocator(m)
	var rewritten []uint32
	for _, c := range bad {
		r := alloc.alloc()
		if r == 0 {
			break
		}
		m[c] = []rune{r}
		rewritten = append(rewritten, c)
	}
	return rewritten
}

// fillCodeMapGaps assigns PUA code points to codes that appear in
// content but have no Unicode mapping. Missing codes are processed in
// ascending order. It returns the codes that were added.
func fillCodeMapGaps(m CodeMap, usedCodes map[uint32]bool) []uint32 {
	var missing []uint32
	for c := range usedCodes {
		if _, ok := m[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	alloc := newPUAAllocator(m)
	var added []uint32
	for _, c := range missing {
		r := alloc.alloc()
		if r == 0 {
			break
		}
		m[c] = []rune{r}
		added = append(added, c)
	}
	return added
}
