package raw

import (
	"bytes"
	"context"
	"testing"
)

// readerAt returns a ReaderAt for in-memory PDF text.
func readerAt(s string) *bytes.Reader { return bytes.NewReader([]byte(s)) }

func TestParserParsesObjectsAndStream(t *testing.T) {
	src := "" +
		"1 0 obj\n" +
		"<< /Type /Catalog >>\n" +
		"endobj\n" +
		"2 0 obj\n" +
		"<< /Length 5 >>\n" +
		"stream\n" +
		"hello\n" +
		"endstream\n" +
		"endobj\n"

	parser := NewParser(ParserConfig{})
	doc, err := parser.Parse(context.Background(), readerAt(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(doc.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(doc.Objects))
	}

	obj1, ok := doc.Objects[ObjectRef{Num: 1, Gen: 0}]
	if !ok {
		t.Fatalf("missing catalog object")
	}
	if obj1.Type() != "dict" {
		t.Fatalf("expected dict for obj 1, got %s", obj1.Type())
	}

	obj2, ok := doc.Objects[ObjectRef{Num: 2, Gen: 0}]
	if !ok {
		t.Fatalf("missing stream object")
	}
	stream, ok := obj2.(*StreamObj)
	if !ok {
		t.Fatalf("expected stream object, got %T", obj2)
	}
	if got := string(stream.Data); got != "hello" {
		t.Fatalf("unexpected stream data: %q", got)
	}
}

func TestParserReadsHeaderAndTrailer(t *testing.T) {
	src := "%PDF-1.6\n" +
		"1 0 obj\n<< /Type /Catalog >>\nendobj\n" +
		"2 0 obj\n<< /Producer (proof) /Title (T) /Keywords (a, b) >>\nendobj\n" +
		"xref\n0 3\n" +
		"0000000000 65535 f \n" +
		"0000000009 00000 n \n" +
		"0000000040 00000 n \n" +
		"trailer\n<< /Size 3 /Root 1 0 R /Info 2 0 R >>\n" +
		"startxref\n100\n%%EOF\n"

	doc, err := NewParser(ParserConfig{}).Parse(context.Background(), readerAt(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Version != "1.6" {
		t.Fatalf("version = %q, want 1.6", doc.Version)
	}
	if doc.Trailer == nil {
		t.Fatalf("trailer missing")
	}
	root, ok := doc.Trailer.Get(NameLiteral("Root"))
	if !ok {
		t.Fatalf("trailer has no Root")
	}
	if ref, ok := root.(Reference); !ok || ref.Ref().Num != 1 {
		t.Fatalf("Root = %v", root)
	}
	if doc.Metadata.Producer != "proof" || doc.Metadata.Title != "T" {
		t.Fatalf("info fields not lifted: %+v", doc.Metadata)
	}
	if len(doc.Metadata.Keywords) != 2 || doc.Metadata.Keywords[1] != "b" {
		t.Fatalf("keywords = %v", doc.Metadata.Keywords)
	}
}

func TestParserRecoversTrailerFromCatalog(t *testing.T) {
	src := "%PDF-1.4\n" +
		"3 0 obj\n<< /Type /Catalog /Pages 4 0 R >>\nendobj\n"

	doc, err := NewParser(ParserConfig{}).Parse(context.Background(), readerAt(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Trailer == nil {
		t.Fatalf("no trailer reconstructed")
	}
	root, ok := doc.Trailer.Get(NameLiteral("Root"))
	if !ok {
		t.Fatalf("reconstructed trailer has no Root")
	}
	if ref, ok := root.(Reference); !ok || ref.Ref().Num != 3 {
		t.Fatalf("Root = %v", root)
	}
}

func TestParserStreamLengthGuardsBinaryData(t *testing.T) {
	payload := "ab\nendstream in data\ncd"
	src := "1 0 obj\n<< /Length " +
		// declared length wins over the first endstream-looking bytes
		"23 >>\nstream\n" + payload + "\nendstream\nendobj\n"

	doc, err := NewParser(ParserConfig{}).Parse(context.Background(), readerAt(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	st, ok := doc.Objects[ObjectRef{Num: 1, Gen: 0}].(*StreamObj)
	if !ok {
		t.Fatalf("stream object missing")
	}
	if string(st.Data) != payload {
		t.Fatalf("stream data = %q, want %q", st.Data, payload)
	}
}

func TestParserMarksEncrypted(t *testing.T) {
	// P = 4|8|1024: print, modify and assemble allowed, copy denied.
	src := "1 0 obj\n<< /Type /Catalog >>\nendobj\n" +
		"9 0 obj\n<< /Filter /Standard /P 1036 >>\nendobj\n" +
		"trailer\n<< /Root 1 0 R /Encrypt 9 0 R >>\n"

	doc, err := NewParser(ParserConfig{}).Parse(context.Background(), readerAt(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !doc.Encrypted {
		t.Fatalf("Encrypt entry not detected")
	}
	p := doc.Permissions
	if !p.Print || !p.Modify || !p.Assemble || p.Copy {
		t.Fatalf("permissions = %+v", p)
	}
}

func TestPermissionsFromNegativeP(t *testing.T) {
	// Real files store P as a negative 32-bit value with the high bits
	// set. -44 grants print and copy but not modify.
	p := PermissionsFromP(-44)
	if !p.Print || !p.Copy || p.Modify {
		t.Fatalf("permissions = %+v", p)
	}
}
