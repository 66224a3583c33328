package fonts

import "testing"

func TestGsubClosureWithoutGSUB(t *testing.T) {
	// The synthesized face has no GSUB table; the closure is the
	// initial set, copied.
	data := buildTestTrueType(ttOptions{numGlyphs: 5, notdef: true})
	initial := map[int]bool{1: true, 3: true}

	closure, err := gsubClosure(data, initial)
	if err != nil {
		t.Fatalf("gsubClosure: %v", err)
	}
	if len(closure) != 2 || !closure[1] || !closure[3] {
		t.Fatalf("closure = %v", closure)
	}

	closure[4] = true
	if initial[4] {
		t.Fatalf("closure aliases the caller's set")
	}
}

func TestGsubClosureRejectsGarbage(t *testing.T) {
	if _, err := gsubClosure([]byte("not a font"), map[int]bool{0: true}); err == nil {
		t.Fatalf("garbage accepted")
	}
}
