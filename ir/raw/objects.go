package raw

import "sort"

// Concrete object types backing the interfaces in raw.go. The engine
// mutates these in place; nothing here is copy-on-write.

// NameObj is a /Name.
type NameObj struct{ Val string }

func NameLiteral(v string) NameObj { return NameObj{Val: v} }

func (n NameObj) Type() string     { return "name" }
func (n NameObj) IsIndirect() bool { return false }
func (n NameObj) Value() string    { return n.Val }

// NumberObj carries either an integer or a real. PDF distinguishes the
// two and some keys (object numbers, /Length) are only valid as
// integers, so the flag is kept rather than normalizing to float64.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func NumberInt(i int64) NumberObj     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj { return NumberObj{F: f} }

func (n NumberObj) Type() string     { return "number" }
func (n NumberObj) IsIndirect() bool { return false }
func (n NumberObj) Int() int64       { return n.I }
func (n NumberObj) IsInteger() bool  { return n.IsInt }

func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// BoolObj is true or false.
type BoolObj struct{ V bool }

func Bool(v bool) BoolObj { return BoolObj{V: v} }

func (b BoolObj) Type() string     { return "boolean" }
func (b BoolObj) IsIndirect() bool { return false }
func (b BoolObj) Value() bool      { return b.V }

// NullObj is the null object.
type NullObj struct{}

func (NullObj) Type() string     { return "null" }
func (NullObj) IsIndirect() bool { return false }

// StringObj holds decoded string bytes. Literal and hex notation decode
// to the same bytes, so the original notation is not preserved.
type StringObj struct{ Bytes []byte }

func Str(b []byte) StringObj { return StringObj{Bytes: b} }

func (s StringObj) Type() string     { return "string" }
func (s StringObj) IsIndirect() bool { return false }
func (s StringObj) Value() []byte    { return s.Bytes }
func (s StringObj) IsHex() bool      { return false }

// ArrayObj is a mutable array.
type ArrayObj struct{ Items []Object }

func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }

func (a *ArrayObj) Type() string     { return "array" }
func (a *ArrayObj) IsIndirect() bool { return false }
func (a *ArrayObj) Len() int         { return len(a.Items) }
func (a *ArrayObj) Append(o Object)  { a.Items = append(a.Items, o) }

func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

// DictObj is a mutable dictionary keyed by name.
type DictObj struct{ KV map[string]Object }

func Dict() *DictObj { return &DictObj{KV: make(map[string]Object)} }

func (d *DictObj) Type() string     { return "dict" }
func (d *DictObj) IsIndirect() bool { return false }
func (d *DictObj) Len() int         { return len(d.KV) }
func (d *DictObj) Delete(key Name)  { delete(d.KV, key.Value()) }

func (d *DictObj) Get(key Name) (Object, bool) {
	o, ok := d.KV[key.Value()]
	return o, ok
}

func (d *DictObj) Set(key Name, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key.Value()] = value
}

// Keys returns the keys in sorted order, so traversal and serialized
// output do not depend on map iteration order.
func (d *DictObj) Keys() []Name {
	names := make([]string, 0, len(d.KV))
	for k := range d.KV {
		names = append(names, k)
	}
	sort.Strings(names)
	keys := make([]Name, len(names))
	for i, k := range names {
		keys[i] = NameObj{Val: k}
	}
	return keys
}

// StreamObj pairs a stream dictionary with its raw, still-encoded
// payload.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func NewStream(dict *DictObj, data []byte) *StreamObj {
	return &StreamObj{Dict: dict, Data: data}
}

func (s *StreamObj) Type() string           { return "stream" }
func (s *StreamObj) IsIndirect() bool       { return false }
func (s *StreamObj) Dictionary() Dictionary { return s.Dict }
func (s *StreamObj) RawData() []byte        { return s.Data }
func (s *StreamObj) Length() int64          { return int64(len(s.Data)) }

// RefObj is an indirect reference.
type RefObj struct{ R ObjectRef }

func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

func (r RefObj) Type() string     { return "ref" }
func (r RefObj) IsIndirect() bool { return true }
func (r RefObj) Ref() ObjectRef   { return r.R }
