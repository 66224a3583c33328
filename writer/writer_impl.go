package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/wudi/pdfarchive/ir/raw"
)

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	if doc.Encrypted && !(doc.Permissions.Modify || doc.Permissions.Assemble) {
		return fmt.Errorf("document permissions forbid modification")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	version := string(cfg.Version)
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = string(PDF17)
	}

	if cfg.Producer != "" {
		setProducer(doc, cfg.Producer)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	ordered := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Num != ordered[j].Num {
			return ordered[i].Num < ordered[j].Num
		}
		return ordered[i].Gen < ordered[j].Gen
	})

	type xrefEntry struct {
		offset int64
		gen    int
	}
	offsets := make(map[int]xrefEntry, len(ordered))
	for _, ref := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		if st, ok := obj.(raw.Stream); ok {
			syncStreamLength(st)
		}
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ref, obj); err != nil {
				return fmt.Errorf("interceptor before object %s: %w", ref, err)
			}
		}
		offset := int64(buf.Len())
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		buf.Write(serialized)
		offsets[ref.Num] = xrefEntry{offset: offset, gen: ref.Gen}
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ref, obj, int64(len(serialized))); err != nil {
				return fmt.Errorf("interceptor after object %s: %w", ref, err)
			}
		}
	}

	maxObjNum := 0
	if len(ordered) > 0 {
		maxObjNum = ordered[len(ordered)-1].Num
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxObjNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObjNum; i++ {
		if e, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", e.offset, e.gen)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := trailerDict(doc, maxObjNum+1)
	if _, ok := trailer.Get(raw.NameLiteral("Root")); !ok {
		return fmt.Errorf("document trailer has no /Root")
	}
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// trailerDict copies the document trailer, dropping the keys that only
// make sense for the xref form of the source file, and sets /Size.
func trailerDict(doc *raw.Document, size int) raw.Dictionary {
	t := raw.Dict()
	if doc.Trailer != nil {
		for _, k := range doc.Trailer.Keys() {
			switch k.Value() {
			case "Size", "Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length":
				continue
			}
			if v, ok := doc.Trailer.Get(k); ok {
				t.Set(k, v)
			}
		}
	}
	t.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	return t
}

// setProducer records the producer string on the trailer's /Info
// dictionary, creating one when the document has none.
func setProducer(doc *raw.Document, producer string) {
	if doc.Trailer == nil {
		doc.Trailer = raw.Dict()
	}
	if ref, ok := raw.RefOf(raw.DictGetRaw(doc.Trailer, "Info")); ok {
		if info, ok := doc.Objects[ref].(raw.Dictionary); ok {
			info.Set(raw.NameLiteral("Producer"), raw.Str([]byte(producer)))
			return
		}
	}
	info := raw.Dict()
	info.Set(raw.NameLiteral("Producer"), raw.Str([]byte(producer)))
	ref := doc.Add(info)
	doc.Trailer.Set(raw.NameLiteral("Info"), raw.Ref(ref.Num, ref.Gen))
}

// syncStreamLength makes the /Length entry agree with the stored data.
func syncStreamLength(st raw.Stream) {
	st.Dictionary().Set(raw.NameLiteral("Length"), raw.NumberInt(st.Length()))
}

func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return serializeName(v.Value())
	case raw.NumberObj:
		if v.IsInteger() {
			return []byte(strconv.FormatInt(v.Int(), 10))
		}
		return []byte(strconv.FormatFloat(v.Float(), 'f', -1, 64))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		return serializeString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		keys := make([]string, 0, len(v.KV))
		for k := range v.KV {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.Write(serializeName(k))
			b.WriteByte(' ')
			b.Write(serializePrimitive(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case *raw.StreamObj:
		var b bytes.Buffer
		b.Write(serializePrimitive(v.Dict))
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	default:
		return []byte("null")
	}
}

// serializeName writes a name with #xx escapes for delimiters,
// whitespace, '#' itself, and bytes outside the printable ASCII range.
func serializeName(name string) []byte {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7E || isDelimiter(c) || c == '#' {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.Bytes()
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// serializeString prefers the literal form; strings that are mostly
// binary come out hex-encoded instead.
func serializeString(s []byte) []byte {
	binaryCount := 0
	for _, c := range s {
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			binaryCount++
		}
	}
	if len(s) > 0 && binaryCount*4 > len(s) {
		var b bytes.Buffer
		b.WriteByte('<')
		for _, c := range s {
			fmt.Fprintf(&b, "%02X", c)
		}
		b.WriteByte('>')
		return b.Bytes()
	}
	var b bytes.Buffer
	b.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, "\\%03o", c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
