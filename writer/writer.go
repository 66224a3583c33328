package writer

import (
	"context"
	"io"

	"github.com/wudi/pdfarchive/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
	PDF20 PDFVersion = "2.0"
)

// Config controls document serialization.
type Config struct {
	// Version overrides the document's recorded version in the header.
	Version PDFVersion
	// Producer replaces the /Producer info entry when non-empty.
	Producer string
}

// Writer serializes a raw document into PDF bytes.
type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes each indirect object as it is written.
type Interceptor interface {
	BeforeWrite(ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ref raw.ObjectRef, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// New returns a writer with no interceptors.
func New() Writer { return (&WriterBuilder{}).Build() }
