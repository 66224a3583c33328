package recovery

import (
	"errors"
	"strings"
	"testing"
)

type nopCtx struct{}

func (nopCtx) Done() <-chan struct{} { return nil }

func TestStrictStrategyFails(t *testing.T) {
	s := NewStrictStrategy()
	if got := s.OnError(nopCtx{}, errors.New("bad token"), Location{}); got != ActionFail {
		t.Fatalf("action = %v, want ActionFail", got)
	}
}

func TestLenientStrategyRecords(t *testing.T) {
	s := NewLenientStrategy()
	base := errors.New("unbalanced dict")

	got := s.OnError(nopCtx{}, base, Location{
		ByteOffset: 42, ObjectNum: 7, ObjectGen: 0, Component: "scanner",
	})
	if got != ActionWarn {
		t.Fatalf("action = %v, want ActionWarn", got)
	}
	if len(s.Errors) != 1 {
		t.Fatalf("recorded %d errors", len(s.Errors))
	}
	if !errors.Is(s.Errors[0], base) {
		t.Errorf("recorded error does not wrap the original")
	}
	msg := s.Errors[0].Error()
	if !strings.Contains(msg, "object 7 0") || !strings.Contains(msg, "offset 42") {
		t.Errorf("location missing from %q", msg)
	}

	// Outside an object body the message carries only the offset.
	s.OnError(nopCtx{}, base, Location{ByteOffset: 9, Component: "scanner"})
	if strings.Contains(s.Errors[1].Error(), "object") {
		t.Errorf("object context fabricated: %q", s.Errors[1])
	}
}

func TestLenientStrategyCapsRecording(t *testing.T) {
	s := NewLenientStrategy()
	for i := 0; i < maxRecorded+10; i++ {
		if got := s.OnError(nopCtx{}, errors.New("x"), Location{}); got != ActionWarn {
			t.Fatalf("action changed to %v at error %d", got, i)
		}
	}
	if len(s.Errors) != maxRecorded || s.Dropped != 10 {
		t.Fatalf("recorded %d, dropped %d", len(s.Errors), s.Dropped)
	}
}
