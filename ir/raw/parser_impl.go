package raw

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wudi/pdfarchive/observability"
	"github.com/wudi/pdfarchive/recovery"
	"github.com/wudi/pdfarchive/scanner"
)

// ParserConfig controls raw parsing behavior.
type ParserConfig struct {
	Scanner scanner.Config
	Log     observability.Logger
}

// NewParser constructs a linear raw.Parser: a single forward scan over
// the byte stream that treats every "N G obj" header as an object,
// regardless of what the cross-reference table claims. Damaged or
// missing xref sections therefore do not matter. Objects packed into
// object streams are not expanded.
func NewParser(cfg ParserConfig) Parser {
	if cfg.Log == nil {
		cfg.Log = observability.NopLogger{}
	}
	return &parserImpl{cfg: cfg}
}

type parserImpl struct {
	cfg ParserConfig
}

func (p *parserImpl) Parse(ctx context.Context, r io.ReaderAt) (*Document, error) {
	s := scanner.New(r, p.cfg.Scanner)
	tr := &tokenReader{s: s}
	if rc, ok := s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{})
	}

	doc := &Document{
		Objects: make(map[ObjectRef]Object),
		Version: headerVersion(r),
	}

	for {
		if err := ctx.Err(); err != nil {
			return doc, err
		}
		tok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			if obj, err := parseObject(tr); err == nil {
				if d, ok := obj.(Dictionary); ok {
					doc.Trailer = d
				}
			}
			continue
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			continue
		}
		objNum := int(tok.Int)

		genTok, err := tr.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
			tr.unread(genTok)
			continue
		}
		gen := int(genTok.Int)

		kwTok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
			tr.unread(kwTok)
			tr.unread(genTok)
			continue
		}

		// Provide object context to recovery-aware scanners.
		if rc, ok := s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
			rc.SetRecoveryLocation(recovery.Location{ObjectNum: objNum, ObjectGen: gen})
		}

		obj, err := parseObject(tr)
		if err != nil {
			p.cfg.Log.Warn("skipping unparsable object",
				observability.Int("num", objNum),
				observability.Error("err", err))
			continue
		}

		// Streams: if the next token is a stream payload, wrap the
		// dictionary. The declared /Length goes to the scanner first so
		// binary payloads containing "endstream" survive.
		if dict, ok := obj.(*DictObj); ok {
			if n, ok := dict.KV["Length"]; ok {
				if num, ok := n.(Number); ok && num.IsInteger() {
					s.SetNextStreamLength(num.Int())
				}
			}
			if streamTok, err := tr.next(); err == nil {
				if streamTok.Type == scanner.TokenStream {
					obj = NewStream(dict, append([]byte(nil), streamTok.Bytes...))
				} else {
					// Not a stream; put it back for outer loop.
					s.SetNextStreamLength(-1)
					tr.unread(streamTok)
				}
			}
		}

		// Consume optional endobj
		if t, err := tr.next(); err == nil {
			if t.Type != scanner.TokenKeyword || t.Str != "endobj" {
				tr.unread(t)
			}
		}

		doc.Objects[ObjectRef{Num: objNum, Gen: gen}] = obj
	}

	if doc.Trailer == nil || !hasTrailerRoot(doc.Trailer) {
		p.recoverTrailer(doc)
	}
	p.applyTrailer(doc)
	return doc, nil
}

func hasTrailerRoot(t Dictionary) bool {
	_, ok := t.Get(NameLiteral("Root"))
	return ok
}

// recoverTrailer rebuilds a usable trailer by locating the document
// catalog among the parsed objects.
func (p *parserImpl) recoverTrailer(doc *Document) {
	for ref, obj := range doc.Objects {
		dict, ok := obj.(Dictionary)
		if !ok {
			continue
		}
		if t, ok := doc.DictGetName(dict, "Type"); ok && t == "Catalog" {
			if doc.Trailer == nil {
				doc.Trailer = Dict()
			}
			doc.Trailer.Set(NameLiteral("Root"), Ref(ref.Num, ref.Gen))
			p.cfg.Log.Warn("trailer reconstructed from catalog",
				observability.String("root", ref.String()))
			return
		}
	}
}

// applyTrailer lifts trailer facts into the document: encryption and
// the info dictionary fields.
func (p *parserImpl) applyTrailer(doc *Document) {
	if doc.Trailer == nil {
		return
	}
	if encObj, ok := doc.Trailer.Get(NameLiteral("Encrypt")); ok {
		doc.Encrypted = true
		if enc, ok := doc.ResolveDict(encObj); ok {
			if p, ok := doc.DictGetInt(enc, "P"); ok {
				doc.Permissions = PermissionsFromP(p)
			}
		}
	}
	info, ok := doc.DictGetDict(doc.Trailer, "Info")
	if !ok {
		return
	}
	str := func(key string) string {
		b, _ := doc.DictGetString(info, key)
		return string(b)
	}
	doc.Metadata.Producer = str("Producer")
	doc.Metadata.Creator = str("Creator")
	doc.Metadata.Title = str("Title")
	doc.Metadata.Author = str("Author")
	doc.Metadata.Subject = str("Subject")
	if kw := str("Keywords"); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				doc.Metadata.Keywords = append(doc.Metadata.Keywords, k)
			}
		}
	}
}

// headerVersion reads the %PDF-M.N comment at the top of the file.
func headerVersion(r io.ReaderAt) string {
	buf := make([]byte, 16)
	n, _ := r.ReadAt(buf, 0)
	s := string(buf[:n])
	if !strings.HasPrefix(s, "%PDF-") {
		return ""
	}
	v := s[5:]
	for i := 0; i < len(v); i++ {
		if c := v[i]; (c < '0' || c > '9') && c != '.' {
			return v[:i]
		}
	}
	return v
}

func parseObject(tr *tokenReader) (Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return NumberObj{F: tok.Float, IsInt: false}, nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenArray:
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected token: %v", tok.Type)
}

func parseArray(tr *tokenReader) (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			break
		}
		tr.unread(tok)
		item, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader) (Object, error) {
	d := Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name in dict, got %v", tok.Type)
		}
		key := tok.Str
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		d.Set(NameObj{Val: key}, val)
	}
	return d, nil
}

type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}
