package fonts

import "errors"

var (
	// ErrNotEmbedded reports a font dictionary with no usable font program.
	ErrNotEmbedded = errors.New("font program not embedded")

	// ErrNoReplacement reports that no substitute face could be found for a
	// non-embedded font.
	ErrNoReplacement = errors.New("no replacement font available")

	// ErrEmbeddingRestricted reports a font whose OS/2 fsType forbids
	// embedding (Restricted License bit set).
	ErrEmbeddingRestricted = errors.New("font license forbids embedding")

	// ErrUnsupportedFormat reports a font program format the engine cannot
	// rewrite (e.g. a damaged or unknown container).
	ErrUnsupportedFormat = errors.New("unsupported font program format")
)
