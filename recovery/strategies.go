package recovery

import "fmt"

// StrictStrategy aborts on the first lexical error. Use it when damaged
// input should be rejected rather than repaired.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (*StrictStrategy) OnError(Context, error, Location) Action { return ActionFail }

// maxRecorded bounds the lenient error log so a badly damaged file
// cannot grow it without limit.
const maxRecorded = 128

// LenientStrategy records every error and keeps scanning. Errors beyond
// the recording cap are counted in Dropped.
type LenientStrategy struct {
	Errors  []error
	Dropped int
}

func NewLenientStrategy() *LenientStrategy { return &LenientStrategy{} }

func (s *LenientStrategy) OnError(ctx Context, err error, loc Location) Action {
	if len(s.Errors) >= maxRecorded {
		s.Dropped++
		return ActionWarn
	}
	if loc.ObjectNum != 0 {
		err = fmt.Errorf("%s at offset %d in object %d %d: %w",
			loc.Component, loc.ByteOffset, loc.ObjectNum, loc.ObjectGen, err)
	} else {
		err = fmt.Errorf("%s at offset %d: %w", loc.Component, loc.ByteOffset, err)
	}
	s.Errors = append(s.Errors, err)
	return ActionWarn
}
