package fonts

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Replacement faces come from the host system, so they get a full parse
// through x/image's sfnt package before anything is embedded; the
// table-level tooling in this package assumes structurally sound input.

// faceIdentity describes a validated replacement face.
type faceIdentity struct {
	PostScriptName string
	NumGlyphs      int
	UnitsPerEm     int
}

// validateFace checks that a font file parses as a complete face with
// usable vertical metrics and returns its identity.
func validateFace(data []byte) (*faceIdentity, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse face: %w", err)
	}
	if f.NumGlyphs() == 0 {
		return nil, fmt.Errorf("face has no glyphs")
	}
	upem := int(f.UnitsPerEm())
	if upem == 0 {
		return nil, fmt.Errorf("face reports zero units per em")
	}

	var buf sfnt.Buffer
	ppem := fixed.Int26_6(upem << 6)
	metrics, err := f.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("face metrics: %w", err)
	}
	if metrics.Ascent <= 0 {
		return nil, fmt.Errorf("face has non-positive ascent")
	}

	name, err := f.Name(&buf, sfnt.NameIDPostScript)
	if err != nil {
		name = ""
	}
	return &faceIdentity{
		PostScriptName: name,
		NumGlyphs:      f.NumGlyphs(),
		UnitsPerEm:     upem,
	}, nil
}
