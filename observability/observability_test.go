package observability

import (
	"errors"
	"testing"
)

func TestFieldConstructors(t *testing.T) {
	if f := String("font", "Helvetica"); f.Key != "font" || f.Value != "Helvetica" {
		t.Errorf("String field = %+v", f)
	}
	if f := Int("glyphs", 12); f.Key != "glyphs" || f.Value != 12 {
		t.Errorf("Int field = %+v", f)
	}
	err := errors.New("boom")
	if f := Error("error", err); f.Key != "error" || f.Value != err {
		t.Errorf("Error field = %+v", f)
	}
}

func TestNopLoggerWith(t *testing.T) {
	var log Logger = NopLogger{}
	log = log.With(String("stage", "embed"))
	// A nop logger stays nop through With.
	if _, ok := log.(NopLogger); !ok {
		t.Fatalf("With returned %T", log)
	}
	log.Info("no-op", Int("n", 1))
}
