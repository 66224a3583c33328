// Package fonts implements font compliance processing for archival PDF
// output: resource traversal, embedding analysis, substitution and
// embedding of missing fonts, TrueType encoding repair, glyph coverage,
// and ToUnicode generation.
//
// The package operates directly on the raw object graph. Font
// dictionaries are rewritten in place; new objects (font programs,
// descriptors, CID structures) are appended to the document.
package fonts

import (
	"github.com/wudi/pdfarchive/filters"
	"github.com/wudi/pdfarchive/ir/raw"
	"github.com/wudi/pdfarchive/observability"
)

// Config configures an Engine.
type Config struct {
	// Log receives progress and warning events. Defaults to NopLogger.
	Log observability.Logger

	// Filters decodes content and font program streams. Defaults to the
	// standard pipeline.
	Filters *filters.Pipeline

	// FontDirs lists directories searched for replacement font files, in
	// order. Defaults to common system font locations.
	FontDirs []string
}

// Engine performs font compliance processing on a document.
type Engine struct {
	log     observability.Logger
	filters *filters.Pipeline
	loader  *FaceLoader
}

// New creates an Engine from cfg, filling unset fields with defaults.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	pipe := cfg.Filters
	if pipe == nil {
		pipe = filters.NewStandardPipeline(filters.DefaultLimits())
	}
	dirs := cfg.FontDirs
	if len(dirs) == 0 {
		dirs = DefaultFontDirs()
	}
	return &Engine{
		log:     log,
		filters: pipe,
		loader:  NewFaceLoader(dirs),
	}
}

// Loader exposes the replacement face loader, mainly for tests.
func (e *Engine) Loader() *FaceLoader { return e.loader }

// Logging field shorthands.
func fieldStr(k, v string) observability.Field     { return observability.String(k, v) }
func fieldInt(k string, v int) observability.Field { return observability.Int(k, v) }
func fieldErr(err error) observability.Field       { return observability.Error("error", err) }

// EmbeddingResult summarizes one embedding pass over a document.
type EmbeddingResult struct {
	// Embedded lists BaseFont names for which a replacement program was
	// embedded.
	Embedded []string

	// Failed lists BaseFont names that remain non-embedded.
	Failed []string

	// Preserved lists BaseFont names that already carried a valid font
	// program and were left untouched.
	Preserved []string

	// Warnings carries human-readable notes (license restrictions,
	// metric mismatches) that did not prevent embedding.
	Warnings []string
}

// FontRef identifies one font dictionary occurrence in the document.
// Dict is the resolved dictionary; Ref is its indirect reference, or a
// synthetic negative object number when the font dictionary is a direct
// object inside a resource dictionary.
type FontRef struct {
	Ref  raw.ObjectRef
	Dict raw.Dictionary

	// PageIndex is the zero-based page the font was first reached from,
	// or -1 for document-level resources (AcroForm DR).
	PageIndex int
}
