// Package compliance defines the shared vocabulary for standards
// validation: violations, reports, and the validator contract.
package compliance

import (
	"context"

	"github.com/wudi/pdfarchive/ir/raw"
)

// Context is an alias for context.Context to allow for future expansion.
type Context = context.Context

// Violation represents a single rule breach.
type Violation struct {
	Code        string // rule identifier, e.g. "6.2.11.4-1"
	Description string
	Location    string // object or page the breach was found at
}

// Report details compliance status against one standard.
type Report struct {
	Compliant  bool
	Standard   string // e.g. "PDF/A-2b"
	Violations []Violation
}

// Validator checks document compliance against a standard.
type Validator interface {
	Validate(ctx Context, doc *raw.Document) (*Report, error)
}
