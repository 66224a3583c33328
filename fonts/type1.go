package fonts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Type 1 font programs keep their charstrings behind two layers of the
// same stream cipher: the eexec section (key 55665) and each charstring
// (key 4330, preceded by lenIV padding bytes). Repairs decrypt the
// eexec section, splice text into it, and re-encrypt, preserving the
// 4-byte random seed at the start of the plaintext.

const (
	eexecKey      = 55665
	charstringKey = 4330
	defaultLenIV  = 4

	t1EncryptC1 = 52845
	t1EncryptC2 = 22719
)

// type1Font is a Type 1 program split into its three sections: the
// clear-text header, the eexec ciphertext, and the trailing zeros block.
type type1Font struct {
	clear   []byte
	cipher  []byte
	trailer []byte
}

// parseType1 splits a Type 1 program. PFB segment headers are unwrapped;
// PFA hex ciphertext is decoded to binary.
func parseType1(data []byte) (*type1Font, error) {
	if len(data) >= 2 && data[0] == 0x80 {
		var err error
		if data, err = unwrapPFB(data); err != nil {
			return nil, err
		}
	}
	if !bytes.HasPrefix(data, []byte("%!")) {
		return nil, fmt.Errorf("%w: not a Type 1 program", ErrUnsupportedFormat)
	}

	marker := bytes.Index(data, []byte("eexec"))
	if marker < 0 {
		return nil, fmt.Errorf("%w: no eexec section", ErrUnsupportedFormat)
	}
	pos := marker + len("eexec")
	for pos < len(data) && (data[pos] == '\r' || data[pos] == '\n' || data[pos] == ' ' || data[pos] == '\t') {
		pos++
	}
	clear := data[:pos]
	rest := data[pos:]

	if isHexCiphertext(rest) {
		cipher, trailer, err := decodeHexCipher(rest)
		if err != nil {
			return nil, err
		}
		return &type1Font{clear: clear, cipher: cipher, trailer: trailer}, nil
	}

	// Binary ciphertext runs up to the 512-zeros block, when present.
	trailerAt := bytes.Index(rest, bytes.Repeat([]byte("0"), 64))
	if trailerAt < 0 {
		return &type1Font{clear: clear, cipher: rest}, nil
	}
	return &type1Font{clear: clear, cipher: rest[:trailerAt], trailer: rest[trailerAt:]}, nil
}

// unwrapPFB concatenates the ASCII and binary segments of a PFB file.
func unwrapPFB(data []byte) ([]byte, error) {
	var out []byte
	pos := 0
	for pos+2 <= len(data) {
		if data[pos] != 0x80 {
			return nil, fmt.Errorf("bad PFB segment marker at %d", pos)
		}
		kind := data[pos+1]
		if kind == 0x03 {
			return out, nil
		}
		if pos+6 > len(data) {
			return nil, fmt.Errorf("truncated PFB segment header")
		}
		length := int(binary.LittleEndian.Uint32(data[pos+2 : pos+6]))
		pos += 6
		if pos+length > len(data) {
			return nil, fmt.Errorf("truncated PFB segment")
		}
		out = append(out, data[pos:pos+length]...)
		pos += length
	}
	return out, nil
}

// isHexCiphertext applies the heuristic from the Type 1 spec: the
// section is hex when its first four non-whitespace bytes are all hex
// digits.
func isHexCiphertext(data []byte) bool {
	seen := 0
	for _, b := range data {
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			continue
		case b >= '0' && b <= '9', b >= 'a' && b <= 'f', b >= 'A' && b <= 'F':
			seen++
			if seen == 4 {
				return true
			}
		default:
			return false
		}
	}
	return false
}

func decodeHexCipher(data []byte) (cipher, trailer []byte, err error) {
	end := bytes.Index(data, bytes.Repeat([]byte("0"), 64))
	hexPart := data
	if end >= 0 {
		hexPart = data[:end]
		trailer = data[end:]
	}
	compact := make([]byte, 0, len(hexPart))
	for _, b := range hexPart {
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			continue
		}
		compact = append(compact, b)
	}
	if len(compact)%2 == 1 {
		compact = compact[:len(compact)-1]
	}
	cipher = make([]byte, len(compact)/2)
	if _, err := hex.Decode(cipher, compact); err != nil {
		return nil, nil, fmt.Errorf("hex eexec section: %w", err)
	}
	return cipher, trailer, nil
}

// t1Decrypt runs the Type 1 stream cipher. eexec plaintext keeps its
// 4-byte seed; charstring callers strip lenIV padding themselves.
func t1Decrypt(key uint16, data []byte) []byte {
	r := key
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = c ^ byte(r>>8)
		r = (uint16(c)+r)*t1EncryptC1 + t1EncryptC2
	}
	return out
}

func t1Encrypt(key uint16, data []byte) []byte {
	r := key
	out := make([]byte, len(data))
	for i, p := range data {
		c := p ^ byte(r>>8)
		out[i] = c
		r = (uint16(c)+r)*t1EncryptC1 + t1EncryptC2
	}
	return out
}

// lenIVOf reads the /lenIV value from decrypted private-dict text.
func lenIVOf(plain []byte) int {
	at := bytes.Index(plain, []byte("/lenIV"))
	if at < 0 {
		return defaultLenIV
	}
	rest := plain[at+len("/lenIV"):]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	j := i
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if v, err := strconv.Atoi(string(rest[i:j])); err == nil {
		return v
	}
	return defaultLenIV
}

// charstringOperators returns the RD/ND operator spelling the private
// dict uses; older fonts write -| and |-.
func charstringOperators(plain []byte) (rd, nd string) {
	if bytes.Contains(plain, []byte("-| ")) && !bytes.Contains(plain, []byte("RD ")) {
		return "-|", "|-"
	}
	return "RD", "ND"
}

// t1EmptyCharstring encrypts a "0 0 hsbw endchar" charstring with lenIV
// zero padding bytes.
func t1EmptyCharstring(lenIV int) []byte {
	if lenIV < 0 {
		lenIV = 0
	}
	plain := make([]byte, lenIV, lenIV+4)
	plain = append(plain, 139, 139, 13, 14) // 0 0 hsbw endchar
	return t1Encrypt(charstringKey, plain)
}

// insertCharstrings splices new charstring entries into decrypted eexec
// text and bumps the /CharStrings dict count. Entries map glyph names
// (without the slash) to already-encrypted charstring bytes.
func insertCharstrings(plain []byte, entries map[string][]byte) ([]byte, error) {
	at := bytes.Index(plain, []byte("/CharStrings"))
	if at < 0 {
		return nil, fmt.Errorf("%w: no CharStrings dict", ErrUnsupportedFormat)
	}
	countStart := at + len("/CharStrings")
	for countStart < len(plain) && plain[countStart] == ' ' {
		countStart++
	}
	countEnd := countStart
	for countEnd < len(plain) && plain[countEnd] >= '0' && plain[countEnd] <= '9' {
		countEnd++
	}
	count, err := strconv.Atoi(string(plain[countStart:countEnd]))
	if err != nil {
		return nil, fmt.Errorf("unreadable CharStrings count")
	}

	beginAt := bytes.Index(plain[countEnd:], []byte("begin"))
	if beginAt < 0 {
		return nil, fmt.Errorf("%w: CharStrings dict has no begin", ErrUnsupportedFormat)
	}
	insertAt := countEnd + beginAt + len("begin")
	for insertAt < len(plain) && plain[insertAt] != '\n' && plain[insertAt] != '\r' {
		insertAt++
	}
	if insertAt < len(plain) {
		insertAt++
	}

	rd, nd := charstringOperators(plain)
	var addition bytes.Buffer
	for _, name := range sortedKeys(entries) {
		cs := entries[name]
		fmt.Fprintf(&addition, "/%s %d %s ", name, len(cs), rd)
		addition.Write(cs)
		addition.WriteString(" " + nd + "\n")
	}

	var out bytes.Buffer
	out.Write(plain[:countStart])
	out.WriteString(strconv.Itoa(count + len(entries)))
	out.Write(plain[countEnd:insertAt])
	out.Write(addition.Bytes())
	out.Write(plain[insertAt:])
	return out.Bytes(), nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// addType1Charstrings inserts encrypted charstrings into a Type 1
// program and returns the rebuilt binary form.
func addType1Charstrings(program []byte, entries map[string][]byte) ([]byte, error) {
	t1, err := parseType1(program)
	if err != nil {
		return nil, err
	}
	plain := t1Decrypt(eexecKey, t1.cipher)
	patched, err := insertCharstrings(plain, entries)
	if err != nil {
		return nil, err
	}
	t1.cipher = t1Encrypt(eexecKey, patched)
	return t1.bytes(), nil
}

// ensureNotdefType1 adds a .notdef charstring to a Type 1 program that
// lacks one.
func (e *Engine) ensureNotdefType1(ctx context.Context, doc *raw.Document, info *FontInfo) (bool, error) {
	t1, err := parseType1(info.Program)
	if err != nil {
		return false, err
	}
	plain := t1Decrypt(eexecKey, t1.cipher)
	if bytes.Contains(plain, []byte("/.notdef")) {
		return false, nil
	}

	cs := t1EmptyCharstring(lenIVOf(plain))
	patched, err := insertCharstrings(plain, map[string][]byte{".notdef": cs})
	if err != nil {
		return false, err
	}
	t1.cipher = t1Encrypt(eexecKey, patched)

	if err := e.replaceFontProgram(ctx, doc, info, t1.bytes()); err != nil {
		return false, err
	}
	e.log.Info("inserted .notdef charstring", fieldStr("font", info.BaseFont))
	return true, nil
}

// bytes reassembles the binary (non-PFB) form of the program.
func (t *type1Font) bytes() []byte {
	out := make([]byte, 0, len(t.clear)+len(t.cipher)+len(t.trailer))
	out = append(out, t.clear...)
	out = append(out, t.cipher...)
	out = append(out, t.trailer...)
	return out
}

// addType1Stream appends a FontFile stream carrying the Length1/Length2/
// Length3 section lengths a Type 1 program requires.
func (e *Engine) addType1Stream(ctx context.Context, doc *raw.Document, program []byte) (raw.ObjectRef, error) {
	t1, err := parseType1(program)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	ref, err := e.addStream(ctx, doc, t1.bytes())
	if err != nil {
		return ref, err
	}
	if st, ok := doc.Objects[ref].(raw.Stream); ok {
		d := st.Dictionary()
		d.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(t1.clear))))
		d.Set(raw.NameLiteral("Length2"), raw.NumberInt(int64(len(t1.cipher))))
		d.Set(raw.NameLiteral("Length3"), raw.NumberInt(int64(len(t1.trailer))))
	}
	return ref, nil
}
