// Package uerror provides the three-tier error taxonomy the analysis
// engine reports through: structural failures in the image itself,
// parse failures localised to one discovery, and cross-check
// disagreements between independently derived facts. All three wrap
// their cause with %w so callers can unwrap with errors.As.
package uerror

import "fmt"

// StructuralError reports a malformed or unsupported image: a section
// missing, an RVA outside every section, a version outside the
// supported range. It is always fatal to the analysis run.
type StructuralError struct {
	Op  string
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("uerror: structural error during %s: %v", e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// NewStructural wraps err as a StructuralError attributed to op.
func NewStructural(op string, err error) *StructuralError {
	return &StructuralError{Op: op, Err: err}
}

// ParseError reports a failure to parse one function body or record at a
// specific RVA. No package constructs one: the function parsers report an
// unparsable body by yielding an UnparsableFunction artefact directly.
type ParseError struct {
	RVA uint32
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("uerror: parse error at %#x during %s: %v", e.RVA, e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParse wraps err as a ParseError attributed to rva and op.
func NewParse(rva uint32, op string, err error) *ParseError {
	return &ParseError{RVA: rva, Op: op, Err: err}
}

// CrossCheckError reports a disagreement between two independently
// derived facts: Analyze raises it when a seeded ZConstruct discovery
// cannot be enqueued and when StaticClass functions disagree on their
// called_fn_addr. Always fatal. Conflicting discoveries at one RVA are
// reported as worklist.ConflictError, and ZConstruct kind disagreements
// as parser.KindMismatchError.
type CrossCheckError struct {
	Check string
	Want  interface{}
	Got   interface{}
}

func (e *CrossCheckError) Error() string {
	return fmt.Sprintf("uerror: cross-check %q failed: want %v, got %v", e.Check, e.Want, e.Got)
}

// NewCrossCheck builds a CrossCheckError for the named check.
func NewCrossCheck(check string, want, got interface{}) *CrossCheckError {
	return &CrossCheckError{Check: check, Want: want, Got: got}
}
