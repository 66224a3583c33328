package fonts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultFontDirs returns the directories searched for replacement font
// files when the caller does not configure any.
func DefaultFontDirs() []string {
	dirs := []string{
		"/usr/share/fonts",
		"/usr/local/share/fonts",
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".fonts"))
	}
	return dirs
}

// FaceLoader locates and caches replacement font files by file name. The
// search directories are indexed once, on first use.
type FaceLoader struct {
	dirs []string

	mu    sync.Mutex
	index map[string]string // lowercased file name -> path
	cache map[string][]byte
}

func NewFaceLoader(dirs []string) *FaceLoader {
	return &FaceLoader{dirs: dirs}
}

func (l *FaceLoader) buildIndex() {
	if l.index != nil {
		return
	}
	l.index = make(map[string]string)
	for _, dir := range l.dirs {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".ttf", ".otf", ".ttc":
				name := strings.ToLower(filepath.Base(path))
				if _, ok := l.index[name]; !ok {
					l.index[name] = path
				}
			}
			return nil
		})
	}
}

// Load returns the bytes of the named font file, searching the
// configured directories.
func (l *FaceLoader) Load(filename string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if data, ok := l.cache[filename]; ok {
		return data, nil
	}
	l.buildIndex()
	path, ok := l.index[strings.ToLower(filename)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReplacement, filename)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	if !strings.HasPrefix(string(data), "ttcf") {
		if _, err := validateFace(data); err != nil {
			return nil, fmt.Errorf("font %s unusable: %w", path, err)
		}
	}
	if l.cache == nil {
		l.cache = make(map[string][]byte)
	}
	l.cache[filename] = data
	return data, nil
}

// LoadFace loads a font file and, for collections, extracts the face at
// ttcIndex as a standalone font.
func (l *FaceLoader) LoadFace(filename string, ttcIndex int) ([]byte, error) {
	data, err := l.Load(filename)
	if err != nil {
		return nil, err
	}
	offsets, err := sfntCollectionOffsets(data)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 1 && offsets[0] == 0 {
		return data, nil
	}
	if ttcIndex < 0 || ttcIndex >= len(offsets) {
		ttcIndex = 0
	}
	face, err := parseSfntAt(data, offsets[ttcIndex])
	if err != nil {
		return nil, err
	}
	flat, err := face.flatten()
	if err != nil {
		return nil, err
	}
	if _, err := validateFace(flat); err != nil {
		return nil, fmt.Errorf("face %d of %s unusable: %w", ttcIndex, filename, err)
	}
	return flat, nil
}

// standardReplacements maps the fourteen standard faces to metrically
// compatible replacement files.
var standardReplacements = map[string]string{
	"Helvetica":             "LiberationSans-Regular.ttf",
	"Helvetica-Bold":        "LiberationSans-Bold.ttf",
	"Helvetica-Oblique":     "LiberationSans-Italic.ttf",
	"Helvetica-BoldOblique": "LiberationSans-BoldItalic.ttf",
	"Times-Roman":           "LiberationSerif-Regular.ttf",
	"Times-Bold":            "LiberationSerif-Bold.ttf",
	"Times-Italic":          "LiberationSerif-Italic.ttf",
	"Times-BoldItalic":      "LiberationSerif-BoldItalic.ttf",
	"Courier":               "LiberationMono-Regular.ttf",
	"Courier-Bold":          "LiberationMono-Bold.ttf",
	"Courier-Oblique":       "LiberationMono-Italic.ttf",
	"Courier-BoldOblique":   "LiberationMono-BoldItalic.ttf",
	"Symbol":                "STIXTwoMath-Regular.otf",
	"ZapfDingbats":          "NotoSansSymbols2-Regular.ttf",
}

// fallbackReplacement is used when nothing better matches.
const fallbackReplacement = "LiberationSans-Regular.ttf"

// ReplacementFor picks a replacement font file for a non-embedded font.
// Standard faces map exactly; for everything else the family and style
// are guessed from the BaseFont name.
func ReplacementFor(baseFont string) string {
	name := StripSubsetTag(baseFont)
	if file, ok := standardReplacements[name]; ok {
		return file
	}

	lower := strings.ToLower(name)
	bold := strings.Contains(lower, "bold") || strings.Contains(lower, "black") ||
		strings.Contains(lower, "heavy")
	italic := strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")

	family := "LiberationSans"
	switch {
	case strings.Contains(lower, "courier") || strings.Contains(lower, "mono"):
		family = "LiberationMono"
	case strings.Contains(lower, "times") || strings.Contains(lower, "serif") ||
		strings.Contains(lower, "georgia") || strings.Contains(lower, "garamond") ||
		strings.Contains(lower, "book"):
		family = "LiberationSerif"
	}

	style := "Regular"
	switch {
	case bold && italic:
		style = "BoldItalic"
	case bold:
		style = "Bold"
	case italic:
		style = "Italic"
	}
	return family + "-" + style + ".ttf"
}

// cjkFaceIndex maps a CIDSystemInfo Ordering to the face index inside
// the Noto CJK collection.
var cjkFaceIndex = map[string]int{
	"GB1":      0,
	"CNS1":     1,
	"Japan1":   2,
	"Korea1":   3,
	"KR":       3,
	"Identity": 0,
}

// cjkCollectionFiles lists collection file names tried for CJK
// replacements, most common first.
var cjkCollectionFiles = []string{
	"NotoSansCJK-Regular.ttc",
	"NotoSerifCJK-Regular.ttc",
	"NotoSansCJK.ttc",
}

// CJKReplacement resolves a replacement face for a CID font by its
// CIDSystemInfo Ordering.
func (l *FaceLoader) CJKReplacement(ordering string) ([]byte, error) {
	idx, ok := cjkFaceIndex[ordering]
	if !ok {
		idx = 0
	}
	var lastErr error
	for _, file := range cjkCollectionFiles {
		data, err := l.LoadFace(file, idx)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoReplacement
	}
	return nil, lastErr
}
