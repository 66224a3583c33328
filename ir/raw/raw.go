// Package raw models a PDF file as it sits on disk: a bag of numbered
// objects plus a trailer. Nothing is interpreted beyond object syntax,
// which lets the font compliance engine mutate the graph in place and
// write it back without round-tripping through a higher-level model.
package raw

import (
	"context"
	"fmt"
	"io"
)

// ObjectRef identifies an indirect object by number and generation.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for every raw PDF object.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary is a mutable PDF dictionary.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Delete(key Name)
	Keys() []Name
	Len() int
}

// Array is a mutable PDF array.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream is a stream object whose payload is still encoded.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name is a PDF name without the leading slash.
type Name interface {
	Object
	Value() string
}

// String is a PDF string, already decoded from literal or hex notation.
type String interface {
	Object
	Value() []byte
	IsHex() bool
}

// Number is a PDF integer or real.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean is a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null is the PDF null object.
type Null interface{ Object }

// Reference is an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// DocumentMetadata holds the common /Info fields.
type DocumentMetadata struct {
	Producer string
	Creator  string
	Title    string
	Author   string
	Subject  string
	Keywords []string
}

// Permissions mirrors the usage rights of an encrypted document.
type Permissions struct {
	Print             bool
	Modify            bool
	Copy              bool
	ModifyAnnotations bool
	FillForms         bool
	ExtractAccessible bool
	Assemble          bool
	PrintHighQuality  bool
}

// PermissionsFromP decodes the /P bit field of an encryption
// dictionary. Bit numbering follows PDF 32000-1 Table 22 (1-based).
func PermissionsFromP(p int64) Permissions {
	bit := func(n uint) bool { return p&(1<<(n-1)) != 0 }
	return Permissions{
		Print:             bit(3),
		Modify:            bit(4),
		Copy:              bit(5),
		ModifyAnnotations: bit(6),
		FillForms:         bit(9),
		ExtractAccessible: bit(10),
		Assemble:          bit(11),
		PrintHighQuality:  bit(12),
	}
}

// Document is the root container for raw objects.
type Document struct {
	Objects     map[ObjectRef]Object
	Trailer     Dictionary
	Version     string // from the %PDF-M.N header
	Metadata    DocumentMetadata
	Permissions Permissions
	Encrypted   bool
}

// NewDocument returns an empty document with an initialized object
// table.
func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object)}
}

// MaxObjectNum returns the highest object number in use.
func (d *Document) MaxObjectNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Add stores obj under a freshly allocated object number and returns
// its ref.
func (d *Document) Add(obj Object) ObjectRef {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	ref := ObjectRef{Num: d.MaxObjectNum() + 1}
	d.Objects[ref] = obj
	return ref
}

// Put replaces the object stored under ref.
func (d *Document) Put(ref ObjectRef, obj Object) {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	d.Objects[ref] = obj
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
