package contentstream

import (
	"errors"
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName
	tokString
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
	tokKeyword
)

type token struct {
	kind  tokenKind
	text  string
	num   float64
	bytes []byte
	pos   int
}

type lexer struct {
	data []byte
	pos  int
}

func isWhitespace(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipWS() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' { // comment to end of line
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) next() (token, error) {
	l.skipWS()
	if l.pos >= len(l.data) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.data[l.pos]

	switch {
	case c == '[':
		l.pos++
		return token{kind: tokArrayOpen, pos: start}, nil
	case c == ']':
		l.pos++
		return token{kind: tokArrayClose, pos: start}, nil
	case c == '(':
		s, err := l.lexLiteralString()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, bytes: s, pos: start}, nil
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return token{kind: tokDictOpen, pos: start}, nil
		}
		s, err := l.lexHexString()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, bytes: s, pos: start}, nil
	case c == '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return token{kind: tokDictClose, pos: start}, nil
		}
		return token{}, fmt.Errorf("stray '>' at offset %d", start)
	case c == '/':
		l.pos++
		nameStart := l.pos
		for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
			l.pos++
		}
		return token{kind: tokName, text: decodeName(l.data[nameStart:l.pos]), pos: start}, nil
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
			l.pos++
		}
		text := string(l.data[start:l.pos])
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			// Operators never start with number characters; treat as junk.
			return l.next()
		}
		return token{kind: tokNumber, num: f, pos: start}, nil
	case c == '{' || c == '}':
		// PostScript procedure braces (Type 4 functions); pass as keywords.
		l.pos++
		return token{kind: tokKeyword, text: string(c), pos: start}, nil
	default:
		for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
			l.pos++
		}
		if l.pos == start {
			l.pos++ // lone delimiter byte we do not understand
			return l.next()
		}
		return token{kind: tokKeyword, text: string(l.data[start:l.pos]), pos: start}, nil
	}
}

// decodeName resolves #xx escapes in a name token.
func decodeName(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			if hi, ok1 := hexVal(raw[i+1]); ok1 {
				if lo, ok2 := hexVal(raw[i+2]); ok2 {
					out = append(out, hi<<4|lo)
					i += 2
					continue
				}
			}
		}
		out = append(out, raw[i])
	}
	return string(out)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) lexLiteralString() ([]byte, error) {
	if l.data[l.pos] != '(' {
		return nil, errors.New("not a literal string")
	}
	l.pos++
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return nil, errors.New("unterminated string escape")
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// Line continuation; swallow optional LF.
				if l.pos+1 < len(l.data) && l.data[l.pos+1] == '\n' {
					l.pos++
				}
			case '\n':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos+1 < len(l.data); k++ {
						nc := l.data[l.pos+1]
						if nc < '0' || nc > '7' {
							break
						}
						v = v*8 + int(nc-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, c)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
			l.pos++
		}
	}
	return nil, errors.New("unterminated literal string")
}

func (l *lexer) lexHexString() ([]byte, error) {
	if l.data[l.pos] != '<' {
		return nil, errors.New("not a hex string")
	}
	l.pos++
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '>' {
			l.pos++
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := 0; i < len(out); i++ {
				hi, _ := hexVal(digits[2*i])
				lo, _ := hexVal(digits[2*i+1])
				out[i] = hi<<4 | lo
			}
			return out, nil
		}
		if _, ok := hexVal(c); ok {
			digits = append(digits, c)
		}
		l.pos++
	}
	return nil, errors.New("unterminated hex string")
}

func (l *lexer) parseArray() (ArrayOperand, error) {
	var items []Operand
	for {
		tok, err := l.next()
		if err != nil {
			return ArrayOperand{}, err
		}
		switch tok.kind {
		case tokArrayClose:
			return ArrayOperand{Items: items}, nil
		case tokEOF:
			return ArrayOperand{}, errors.New("unterminated array")
		case tokNumber:
			items = append(items, NumberOperand{Value: tok.num})
		case tokName:
			items = append(items, NameOperand{Value: tok.text})
		case tokString:
			items = append(items, StringOperand{Value: tok.bytes})
		case tokArrayOpen:
			inner, err := l.parseArray()
			if err != nil {
				return ArrayOperand{}, err
			}
			items = append(items, inner)
		case tokDictOpen:
			inner, err := l.parseDict()
			if err != nil {
				return ArrayOperand{}, err
			}
			items = append(items, inner)
		case tokKeyword:
			switch tok.text {
			case "true":
				items = append(items, BoolOperand{Value: true})
			case "false":
				items = append(items, BoolOperand{Value: false})
			default:
				items = append(items, NullOperand{})
			}
		default:
			return ArrayOperand{}, fmt.Errorf("unexpected token in array at offset %d", tok.pos)
		}
	}
}

func (l *lexer) parseDict() (DictOperand, error) {
	items := make(map[string]Operand)
	for {
		tok, err := l.next()
		if err != nil {
			return DictOperand{}, err
		}
		switch tok.kind {
		case tokDictClose:
			return DictOperand{Items: items}, nil
		case tokEOF:
			return DictOperand{}, errors.New("unterminated dictionary")
		case tokName:
			val, err := l.next()
			if err != nil {
				return DictOperand{}, err
			}
			switch val.kind {
			case tokNumber:
				items[tok.text] = NumberOperand{Value: val.num}
			case tokName:
				items[tok.text] = NameOperand{Value: val.text}
			case tokString:
				items[tok.text] = StringOperand{Value: val.bytes}
			case tokArrayOpen:
				inner, err := l.parseArray()
				if err != nil {
					return DictOperand{}, err
				}
				items[tok.text] = inner
			case tokDictOpen:
				inner, err := l.parseDict()
				if err != nil {
					return DictOperand{}, err
				}
				items[tok.text] = inner
			case tokKeyword:
				switch val.text {
				case "true":
					items[tok.text] = BoolOperand{Value: true}
				case "false":
					items[tok.text] = BoolOperand{Value: false}
				default:
					items[tok.text] = NullOperand{}
				}
			default:
				return DictOperand{}, fmt.Errorf("unexpected dict value at offset %d", val.pos)
			}
		default:
			return DictOperand{}, fmt.Errorf("expected name key at offset %d", tok.pos)
		}
	}
}

// skipInlineImage advances past inline image data to the closing EI.
// A whitespace-preceded EI is preferred; some producers butt the binary
// payload directly against the marker, so when no such EI exists any EI
// followed by whitespace, a delimiter or end of stream is accepted
// rather than losing every operator after the image.
func (l *lexer) skipInlineImage() error {
	// One whitespace byte follows ID before binary data.
	if l.pos < len(l.data) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
	if end, ok := l.findImageEnd(l.pos, true); ok {
		l.pos = end
		return nil
	}
	if end, ok := l.findImageEnd(l.pos, false); ok {
		l.pos = end
		return nil
	}
	l.pos = len(l.data)
	return nil
}

// findImageEnd scans for an EI marker from the given offset. needWS
// restricts the match to markers preceded by whitespace.
func (l *lexer) findImageEnd(from int, needWS bool) (int, bool) {
	for i := from; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if needWS && i > 0 && !isWhitespace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isWhitespace(l.data[i+2]) && !isDelimiter(l.data[i+2]) {
			continue
		}
		return i + 2, true
	}
	return 0, false
}
