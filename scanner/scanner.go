// Package scanner turns raw PDF bytes into a token stream. It buffers
// the source in fixed-size windows, so it never needs the whole file in
// advance, and it can hand lexical errors to a recovery.Strategy
// instead of aborting on the first damaged byte.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/wudi/pdfarchive/recovery"
)

// TokenType classifies a scanned token.
type TokenType int

const (
	TokenDict        TokenType = iota // <<
	TokenArray                        // [
	TokenName                         // /Name
	TokenString                       // (literal) or <hex>
	TokenNumber                       // integer or real
	TokenBoolean                      // true, false
	TokenNull                         // null
	TokenRef                          // N G R
	TokenStream                       // payload between stream and endstream
	TokenInlineImage                  // payload between ID and EI (content streams)
	TokenKeyword                      // everything else: obj, endobj, >>, ], ...
)

// Token is one lexical unit. Which fields are populated depends on
// Type: Str carries names and keywords, Bytes carries string, stream
// and inline image payloads, Int/Float/IsInt carry numbers, and
// Int/Gen carry indirect references.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	SetNextStreamLength(n int64)
}

// Config bounds the scanner against hostile input. Zero values mean
// unlimited. Recovery, when set, is consulted on every lexical error.
type Config struct {
	MaxNameLength   int64
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	MaxInlineImage  int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

const defaultWindow = 64 * 1024

// lexer scans forward over a window-buffered source.
type lexer struct {
	src        ReaderAt
	buf        []byte
	pos        int64
	eof        bool
	readErr    error
	window     int64
	cfg        Config
	streamLen  int64 // declared /Length of the next stream, -1 if unknown
	arrDepth   int
	dictDepth  int
	baseLoc    recovery.Location
	lastAction recovery.Action
}

func New(r ReaderAt, cfg Config) Scanner {
	w := cfg.WindowSize
	if w <= 0 {
		w = defaultWindow
	}
	return &lexer{src: r, cfg: cfg, window: w, streamLen: -1}
}

func (s *lexer) Position() int64 { return s.pos }

func (s *lexer) SetNextStreamLength(n int64) { s.streamLen = n }

// SetRecoveryLocation attaches object context to errors reported
// through the recovery strategy. Callers reach it by type assertion.
func (s *lexer) SetRecoveryLocation(loc recovery.Location) { s.baseLoc = loc }

func (s *lexer) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.grow(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.buf)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

// grow extends the buffer until offset n is readable or the source is
// exhausted.
func (s *lexer) grow(n int64) error {
	for int64(len(s.buf)) <= n {
		if s.eof {
			return io.EOF
		}
		chunk := make([]byte, s.window)
		got, err := s.src.ReadAt(chunk, int64(len(s.buf)))
		if got > 0 {
			s.buf = append(s.buf, chunk[:got]...)
		}
		switch {
		case errors.Is(err, io.EOF):
			s.eof = true
		case err != nil:
			return err
		case got == 0:
			s.eof = true
		}
	}
	return nil
}

// have reports whether the byte at offset i can be read. Read failures
// other than EOF are parked in readErr for the caller to surface.
func (s *lexer) have(i int64) bool {
	if i < int64(len(s.buf)) {
		return true
	}
	if err := s.grow(i); err != nil && !errors.Is(err, io.EOF) {
		s.readErr = err
	}
	return i < int64(len(s.buf))
}

func (s *lexer) Next() (Token, error) {
	s.skipSpace()
	if !s.have(s.pos) {
		if s.readErr != nil {
			return Token{}, s.readErr
		}
		return s.atEnd()
	}
	start := s.pos
	switch c := s.buf[s.pos]; {
	case c == '<':
		if s.have(s.pos+1) && s.buf[s.pos+1] == '<' {
			s.pos += 2
			return s.open(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case c == '>':
		if s.have(s.pos+1) && s.buf[s.pos+1] == '>' {
			s.pos += 2
			return s.close(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case c == '[':
		s.pos++
		return s.open(Token{Type: TokenArray, Str: "[", Pos: start})
	case c == ']':
		s.pos++
		return s.close(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case c == '(':
		return s.scanLiteralString()
	case c == '/':
		return s.scanName()
	case numberStart(c):
		return s.scanNumberOrRef()
	case keywordStart(c):
		return s.scanKeyword()
	default:
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	}
}

// skipSpace advances past whitespace and % comments.
func (s *lexer) skipSpace() {
	for s.have(s.pos) {
		switch c := s.buf[s.pos]; {
		case isWhitespace(c):
			s.pos++
		case c == '%':
			for s.have(s.pos) && !isEOL(s.buf[s.pos]) {
				s.pos++
			}
		default:
			return
		}
	}
}

// atEnd reports EOF. An array or dictionary still open at that point is
// offered to the recovery strategy, which may synthesize the missing
// close token.
func (s *lexer) atEnd() (Token, error) {
	if s.cfg.Recovery != nil {
		switch {
		case s.arrDepth > 0:
			err := s.recover(errors.New("array still open at end of input"), "array")
			if err == nil && s.lastAction == recovery.ActionFix {
				s.arrDepth--
				return Token{Type: TokenKeyword, Str: "]", Pos: s.pos}, nil
			}
		case s.dictDepth > 0:
			err := s.recover(errors.New("dict still open at end of input"), "dict")
			if err == nil && s.lastAction == recovery.ActionFix {
				s.dictDepth--
				return Token{Type: TokenKeyword, Str: ">>", Pos: s.pos}, nil
			}
		}
	}
	return Token{}, io.EOF
}

// open tracks nesting for [ and << tokens.
func (s *lexer) open(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrDepth > s.cfg.MaxArrayDepth {
			if err := s.recover(errors.New("array depth exceeded"), "array"); err != nil {
				return Token{}, err
			}
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			if err := s.recover(errors.New("dict depth exceeded"), "dict"); err != nil {
				return Token{}, err
			}
		}
	}
	return tok, nil
}

// close tracks nesting for ] and >> tokens. A close with nothing open
// is dropped when the strategy says to continue.
func (s *lexer) close(tok Token) (Token, error) {
	switch tok.Str {
	case "]":
		if s.arrDepth == 0 {
			if err := s.recover(errors.New("array close without open"), "array"); err != nil {
				return Token{}, err
			}
			return s.Next()
		}
		s.arrDepth--
	case ">>":
		if s.dictDepth == 0 {
			if err := s.recover(errors.New("dict close without open"), "dict"); err != nil {
				return Token{}, err
			}
			return s.Next()
		}
		s.dictDepth--
	}
	return tok, nil
}

func (s *lexer) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	name := make([]byte, 0, 16)
	for s.have(s.pos) {
		c := s.buf[s.pos]
		if isDelimiter(c) {
			break
		}
		s.pos++
		if c == '#' {
			c = s.nibble()<<4 | s.nibble()
		}
		name = append(name, c)
		if s.cfg.MaxNameLength > 0 && int64(len(name)) > s.cfg.MaxNameLength {
			if err := s.recover(errors.New("name too long"), "name"); err != nil {
				return Token{}, err
			}
			name = name[:s.cfg.MaxNameLength]
			for s.have(s.pos) && !isDelimiter(s.buf[s.pos]) {
				s.pos++
			}
			break
		}
	}
	if s.readErr != nil {
		return Token{}, s.readErr
	}
	return Token{Type: TokenName, Str: string(name), Pos: start}, nil
}

// nibble consumes one hex digit of a name escape, reading a missing or
// malformed digit as zero the way most viewers do.
func (s *lexer) nibble() byte {
	if !s.have(s.pos) {
		return 0
	}
	c := s.buf[s.pos]
	s.pos++
	return hexVal(c)
}

func (s *lexer) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var out bytes.Buffer
	depth := 1
	for s.have(s.pos) {
		c := s.buf[s.pos]
		s.pos++
		switch c {
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: out.Bytes(), Pos: start}, nil
			}
			out.WriteByte(c)
		case '(':
			depth++
			out.WriteByte(c)
		case '\\':
			s.unescape(&out)
		default:
			out.WriteByte(c)
			if s.cfg.MaxStringLength > 0 && int64(out.Len()) > s.cfg.MaxStringLength {
				return Token{}, s.recover(errors.New("literal string too long"), "literal")
			}
		}
	}
	if s.readErr != nil {
		return Token{}, s.readErr
	}
	if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
		return Token{}, err
	}
	return Token{Type: TokenString, Bytes: out.Bytes(), Pos: start}, nil
}

// unescape handles the character after a backslash inside a literal
// string. A backslash before an EOL is a line continuation and
// produces nothing.
func (s *lexer) unescape(out *bytes.Buffer) {
	if !s.have(s.pos) {
		return
	}
	c := s.buf[s.pos]
	s.pos++
	switch {
	case c == '\r':
		if s.have(s.pos) && s.buf[s.pos] == '\n' {
			s.pos++
		}
	case c == '\n':
	case c >= '0' && c <= '7':
		v := int(c - '0')
		for k := 0; k < 2 && s.have(s.pos); k++ {
			d := s.buf[s.pos]
			if d < '0' || d > '7' {
				break
			}
			v = v<<3 | int(d-'0')
			s.pos++
		}
		out.WriteByte(byte(v))
	case c == 'n':
		out.WriteByte('\n')
	case c == 'r':
		out.WriteByte('\r')
	case c == 't':
		out.WriteByte('\t')
	case c == 'b':
		out.WriteByte('\b')
	case c == 'f':
		out.WriteByte('\f')
	default:
		// Covers \( \) \\ and unknown escapes, which keep the char.
		out.WriteByte(c)
	}
}

func (s *lexer) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var out []byte
	var hi byte
	pending := false
	closed := false
	for s.have(s.pos) {
		c := s.buf[s.pos]
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		if pending {
			out = append(out, hi<<4|hexVal(c))
			pending = false
			if s.cfg.MaxStringLength > 0 && int64(len(out)) > s.cfg.MaxStringLength {
				return Token{}, s.recover(errors.New("hex string too long"), "hex")
			}
		} else {
			hi = hexVal(c)
			pending = true
		}
	}
	if s.readErr != nil {
		return Token{}, s.readErr
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if pending {
		// Odd digit count: the final nibble pairs with zero.
		out = append(out, hi<<4)
		if s.cfg.MaxStringLength > 0 && int64(len(out)) > s.cfg.MaxStringLength {
			return Token{}, s.recover(errors.New("hex string too long"), "hex")
		}
	}
	return Token{Type: TokenString, Bytes: out, Pos: start}, nil
}

func (s *lexer) scanKeyword() (Token, error) {
	start := s.pos
	for s.have(s.pos) && !isDelimiter(s.buf[s.pos]) {
		s.pos++
	}
	if s.readErr != nil {
		return Token{}, s.readErr
	}
	word := string(s.buf[start:s.pos])
	switch word {
	case "true":
		return Token{Type: TokenBoolean, Bool: true, Pos: start}, nil
	case "false":
		return Token{Type: TokenBoolean, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID":
		// The caller has already consumed the image dictionary.
		return s.scanInlineImage(start)
	}
	return Token{Type: TokenKeyword, Str: word, Pos: start}, nil
}

func (s *lexer) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumeral()
	if first == "" {
		s.pos++
		return Token{}, errors.New("invalid number")
	}

	// "N G R" lookahead. Both numbers plus the R keyword must follow,
	// otherwise everything past the first number is rewound.
	s.skipSpace()
	afterFirst := s.pos
	if second := s.scanNumeral(); second != "" {
		s.skipSpace()
		if s.have(s.pos) && s.buf[s.pos] == 'R' {
			s.pos++
			num, _ := strconv.ParseInt(first, 10, 64)
			gen, _ := strconv.Atoi(second)
			return Token{Type: TokenRef, Int: num, Gen: gen, Pos: start}, nil
		}
	}
	s.pos = afterFirst

	if n, err := strconv.ParseInt(first, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: n, IsInt: true, Pos: start}, nil
	}
	f, _ := strconv.ParseFloat(first, 64)
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

// scanNumeral consumes sign, digit and dot characters, returning ""
// with the position restored when no digit was present.
func (s *lexer) scanNumeral() string {
	start := s.pos
	digits := false
	for s.have(s.pos) {
		c := s.buf[s.pos]
		if c != '+' && c != '-' && c != '.' && (c < '0' || c > '9') {
			break
		}
		if c >= '0' && c <= '9' {
			digits = true
		}
		s.pos++
	}
	if !digits {
		s.pos = start
		return ""
	}
	return string(s.buf[start:s.pos])
}

var endstreamMarker = []byte("endstream")

// scanStream reads the payload between the stream keyword and the next
// endstream marker. A declared /Length, handed over through
// SetNextStreamLength, wins over marker search, since real payloads may
// contain the marker bytes.
func (s *lexer) scanStream(start int64) (Token, error) {
	declared := s.streamLen
	s.streamLen = -1

	// PDF 7.3.8: the keyword is separated from the data by an EOL.
	if !s.have(s.pos) || !s.consumeEOL() {
		return Token{}, s.recover(errors.New("stream keyword missing EOL before data"), "stream")
	}
	if declared >= 0 {
		return s.scanStreamDeclared(start, declared)
	}
	return s.scanStreamSearch(start)
}

func (s *lexer) scanStreamDeclared(start, want int64) (Token, error) {
	if s.cfg.MaxStreamLength > 0 && want > s.cfg.MaxStreamLength {
		return Token{}, s.recover(errors.New("stream too long"), "stream")
	}
	dataStart := s.pos
	n := want
	if n > 0 && !s.have(dataStart+n-1) {
		if s.readErr != nil {
			return Token{}, s.readErr
		}
		if err := s.recover(errors.New("stream shorter than declared length"), "stream"); err != nil {
			return Token{}, err
		}
		n = int64(len(s.buf)) - dataStart
	}
	payload := append([]byte(nil), s.buf[dataStart:dataStart+n]...)
	s.pos = dataStart + n

	// Step over the separator EOL and the endstream keyword if present.
	s.consumeEOL()
	if s.have(s.pos+int64(len(endstreamMarker))-1) && bytes.HasPrefix(s.buf[s.pos:], endstreamMarker) {
		s.pos += int64(len(endstreamMarker))
	} else if idx := bytes.Index(s.buf[s.pos:], endstreamMarker); idx >= 0 {
		s.pos += int64(idx + len(endstreamMarker))
	}
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (s *lexer) scanStreamSearch(start int64) (Token, error) {
	dataStart := s.pos
	markerAt := int64(-1)
	for i := dataStart; ; i++ {
		if !s.have(i + int64(len(endstreamMarker)) - 1) {
			if s.readErr != nil {
				return Token{}, s.readErr
			}
			break
		}
		scanned := i - dataStart
		if s.cfg.MaxStreamScan > 0 && scanned > s.cfg.MaxStreamScan {
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
			break
		}
		if s.cfg.MaxStreamLength > 0 && scanned > s.cfg.MaxStreamLength {
			return Token{}, s.recover(errors.New("stream too long"), "stream")
		}
		if s.buf[i] != 'e' || !bytes.HasPrefix(s.buf[i:], endstreamMarker) {
			continue
		}
		// The marker must sit on a token boundary: payload bytes can
		// spell endstream, so demand whitespace before and a delimiter
		// or EOF after.
		if i > dataStart && !isWhitespace(s.buf[i-1]) {
			continue
		}
		if after := i + int64(len(endstreamMarker)); s.have(after) && !isDelimiter(s.buf[after]) {
			continue
		}
		markerAt = i
		break
	}

	if markerAt < 0 {
		// No marker before EOF or the scan limit: salvage the rest.
		payload := append([]byte(nil), s.buf[dataStart:]...)
		if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
			return Token{}, s.recover(errors.New("stream too long"), "stream")
		}
		if s.cfg.MaxStreamScan > 0 && int64(len(payload)) > s.cfg.MaxStreamScan {
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
		}
		s.pos = int64(len(s.buf))
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}

	// Strip the EOL that separates payload from marker.
	end := markerAt
	if end > dataStart {
		switch {
		case s.buf[end-1] == '\n':
			end--
			if end > dataStart && s.buf[end-1] == '\r' {
				end--
			}
		case s.buf[end-1] == '\r':
			end--
		}
	}
	payload := append([]byte(nil), s.buf[dataStart:end]...)
	if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
		return Token{}, s.recover(errors.New("stream too long"), "stream")
	}
	s.pos = markerAt + int64(len(endstreamMarker))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

// scanInlineImage reads the binary payload between ID and EI. The
// image dictionary is not interpreted here; only the payload boundary
// matters. Requiring a line break before EI keeps pixel data that
// happens to contain those two bytes from ending the image early.
func (s *lexer) scanInlineImage(start int64) (Token, error) {
	if !s.have(s.pos) || !isWhitespace(s.buf[s.pos]) {
		return Token{}, s.recover(errors.New("inline image missing whitespace after ID"), "image")
	}
	s.pos++
	// An EOL right after the separator belongs to it, not to the data.
	s.consumeEOL()
	dataStart := s.pos
	for {
		if !s.have(s.pos + 1) {
			if s.readErr != nil {
				return Token{}, s.readErr
			}
			if err := s.recover(errors.New("unterminated inline image"), "image"); err != nil {
				return Token{}, err
			}
			payload := append([]byte(nil), s.buf[dataStart:]...)
			s.pos = int64(len(s.buf))
			return Token{Type: TokenInlineImage, Bytes: payload, Pos: start}, nil
		}
		if s.cfg.MaxInlineImage > 0 && s.pos-dataStart > s.cfg.MaxInlineImage {
			return Token{}, s.recover(errors.New("inline image too long"), "image")
		}
		if s.buf[s.pos] == 'E' && s.buf[s.pos+1] == 'I' &&
			s.pos > dataStart && isEOL(s.buf[s.pos-1]) {
			if after := s.pos + 2; !s.have(after) || isDelimiter(s.buf[after]) {
				payload := append([]byte(nil), s.buf[dataStart:s.pos]...)
				if s.cfg.MaxInlineImage > 0 && int64(len(payload)) > s.cfg.MaxInlineImage {
					return Token{}, s.recover(errors.New("inline image too long"), "image")
				}
				s.pos += 2
				return Token{Type: TokenInlineImage, Bytes: payload, Pos: start}, nil
			}
		}
		s.pos++
	}
}

// consumeEOL eats one line ending: LF, CRLF, or a bare CR.
func (s *lexer) consumeEOL() bool {
	if !s.have(s.pos) {
		return false
	}
	switch s.buf[s.pos] {
	case '\n':
		s.pos++
		return true
	case '\r':
		s.pos++
		if s.have(s.pos) && s.buf[s.pos] == '\n' {
			s.pos++
		}
		return true
	}
	return false
}

// recover routes a lexical error through the configured strategy. A nil
// return means the strategy chose to continue; callers then emit
// whatever they salvaged.
func (s *lexer) recover(err error, where string) error {
	s.lastAction = recovery.ActionFail
	if s.cfg.Recovery == nil {
		return err
	}
	loc := s.baseLoc
	loc.ByteOffset = s.pos
	if loc.Component != "" {
		loc.Component += "->"
	}
	loc.Component += "scanner:" + where
	s.lastAction = s.cfg.Recovery.OnError(nil, err, loc)
	switch s.lastAction {
	case recovery.ActionFix, recovery.ActionSkip:
		return nil
	default:
		return err
	}
}

func numberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func keywordStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isWhitespace matches the six PDF whitespace characters.
func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
