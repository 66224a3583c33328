package writer

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/wudi/pdfarchive/ir/raw"
)

func testDocument() *raw.Document {
	doc := raw.NewDocument()

	content := []byte("BT /F1 12 Tf 10 20 Td (Hello) Tj ET")
	contentDict := raw.Dict()
	contentRef := doc.Add(raw.NewStream(contentDict, content))

	fontDict := raw.Dict()
	fontDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	fontDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	fontDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Helvetica"))
	fontRef := doc.Add(fontDict)

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(200), raw.NumberInt(200)))
	page.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))
	res := raw.Dict()
	fontRes := raw.Dict()
	fontRes.Set(raw.NameLiteral("F1"), raw.Ref(fontRef.Num, fontRef.Gen))
	res.Set(raw.NameLiteral("Font"), fontRes)
	page.Set(raw.NameLiteral("Resources"), res)
	pageRef := doc.Add(page)

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(pageRef.Num, pageRef.Gen)))
	pagesRef := doc.Add(pages)
	page.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, pagesRef.Gen))

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	catalogRef := doc.Add(catalog)

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	doc.Trailer = trailer
	doc.Version = "1.7"
	return doc
}

func TestWriteDocument(t *testing.T) {
	doc := testDocument()
	var buf bytes.Buffer
	if err := New().Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data := buf.Bytes()

	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Fatalf("bad header: %q", data[:9])
	}
	if !bytes.HasSuffix(data, []byte("%%EOF\n")) {
		t.Fatalf("missing EOF marker")
	}
	if !bytes.Contains(data, []byte("/BaseFont /Helvetica")) {
		t.Fatalf("font dictionary not serialized")
	}
	if !bytes.Contains(data, []byte("(Hello)")) {
		t.Fatalf("content stream missing")
	}
	if !bytes.Contains(data, []byte(fmt.Sprintf("/Size %d", doc.MaxObjectNum()+1))) {
		t.Fatalf("trailer /Size wrong")
	}

	// Every xref offset must point at the matching "N G obj" line.
	idx := bytes.LastIndex(data, []byte("startxref\n"))
	if idx < 0 {
		t.Fatalf("no startxref")
	}
	end := bytes.IndexByte(data[idx+10:], '\n')
	xrefOff, err := strconv.Atoi(string(data[idx+10 : idx+10+end]))
	if err != nil || !bytes.HasPrefix(data[xrefOff:], []byte("xref\n")) {
		t.Fatalf("startxref does not point at xref table")
	}
	lines := strings.Split(string(data[xrefOff:idx]), "\n")
	for i, line := range lines[2:] { // skip "xref" and the subsection header
		if !strings.HasSuffix(line, " n ") {
			continue
		}
		off, err := strconv.Atoi(line[:10])
		if err != nil {
			t.Fatalf("bad offset line %q", line)
		}
		want := fmt.Sprintf("%d ", i)
		if !bytes.HasPrefix(data[off:], []byte(want)) {
			t.Errorf("object %d: offset %d points at %q", i, off, data[off:off+12])
		}
	}
}

func TestWriteRequiresRoot(t *testing.T) {
	doc := raw.NewDocument()
	doc.Add(raw.Dict())
	var buf bytes.Buffer
	if err := New().Write(context.Background(), doc, &buf, Config{}); err == nil {
		t.Fatalf("expected error for trailer without /Root")
	}
}

func TestWriteSetsProducer(t *testing.T) {
	doc := testDocument()
	var buf bytes.Buffer
	if err := New().Write(context.Background(), doc, &buf, Config{Producer: "pdfarchive"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("/Producer (pdfarchive)")) {
		t.Fatalf("producer not written")
	}
	if _, ok := doc.Trailer.Get(raw.NameLiteral("Info")); !ok {
		t.Fatalf("no /Info added to trailer")
	}
}

func TestWriteStreamLengthSynced(t *testing.T) {
	doc := testDocument()
	// Deliberately wrong /Length; the writer must correct it.
	for _, obj := range doc.Objects {
		if st, ok := obj.(raw.Stream); ok {
			st.Dictionary().Set(raw.NameLiteral("Length"), raw.NumberInt(1))
		}
	}
	var buf bytes.Buffer
	if err := New().Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("/Length 1>>")) {
		t.Fatalf("stale /Length survived")
	}
}

func TestSerializeNameEscaping(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Name", "/Name"},
		{"A B", "/A#20B"},
		{"Paired()", "/Paired#28#29"},
		{"50#off", "/50#23off"},
		{"Höhe", "/H#C3#B6he"},
	}
	for _, c := range cases {
		if got := string(serializeName(c.in)); got != c.want {
			t.Errorf("serializeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSerializeStringEscaping(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "(plain)"},
		{"a(b)c", `(a\(b\)c)`},
		{"back\\slash", `(back\\slash)`},
		{"line\nbreak", `(line\nbreak)`},
		{"\x00\x01\x02\x03", "<00010203>"},
	}
	for _, c := range cases {
		if got := string(serializeString([]byte(c.in))); got != c.want {
			t.Errorf("serializeString(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSerializeObjectDeterministic(t *testing.T) {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Zebra"), raw.NumberInt(1))
	d.Set(raw.NameLiteral("Alpha"), raw.Bool(true))
	d.Set(raw.NameLiteral("Mid"), raw.NewArray(raw.NumberFloat(0.5), raw.NameLiteral("X")))

	w := New()
	first, err := w.SerializeObject(raw.ObjectRef{Num: 7}, d)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	want := "7 0 obj\n<</Alpha true/Mid [0.5 /X]/Zebra 1>>\nendobj\n"
	if string(first) != want {
		t.Fatalf("got %q, want %q", first, want)
	}
	for i := 0; i < 5; i++ {
		again, _ := w.SerializeObject(raw.ObjectRef{Num: 7}, d)
		if !bytes.Equal(first, again) {
			t.Fatalf("serialization not deterministic")
		}
	}
}

type countingInterceptor struct{ before, after int }

func (c *countingInterceptor) BeforeWrite(ref raw.ObjectRef, obj raw.Object) error {
	c.before++
	return nil
}
func (c *countingInterceptor) AfterWrite(ref raw.ObjectRef, obj raw.Object, n int64) error {
	c.after++
	if n <= 0 {
		return fmt.Errorf("object %s wrote %d bytes", ref, n)
	}
	return nil
}

func TestInterceptorsObserveEveryObject(t *testing.T) {
	doc := testDocument()
	ic := &countingInterceptor{}
	w := (&WriterBuilder{}).WithInterceptor(ic).Build()
	var buf bytes.Buffer
	if err := w.Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ic.before != len(doc.Objects) || ic.after != len(doc.Objects) {
		t.Fatalf("interceptor saw %d/%d objects, want %d", ic.before, ic.after, len(doc.Objects))
	}
}
