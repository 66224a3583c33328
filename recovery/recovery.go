// Package recovery decides how lexical errors in damaged PDF input are
// handled. The scanner reports each error with its location; the
// configured Strategy answers with an Action.
package recovery

// Location pinpoints where in the input an error was raised. ObjectNum
// and ObjectGen are zero outside an object body.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

// Action is a Strategy's verdict on one error.
type Action int

const (
	// ActionFail aborts the scan with the error.
	ActionFail Action = iota
	// ActionSkip drops the offending construct and resynchronizes.
	ActionSkip
	// ActionFix applies the scanner's best-guess repair in place.
	ActionFix
	// ActionWarn records the error and continues unchanged.
	ActionWarn
)

// Context carries cancellation into OnError without importing the full
// context package at this layer.
type Context interface{ Done() <-chan struct{} }

// Strategy decides what happens after a lexical error.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}
