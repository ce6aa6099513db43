// Package step defines the compiled transformation unit of a pipeline.
package step

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/wrangle/pkg/row"
)

// Policy decides what happens to a batch when a step fails on one row.
type Policy int

const (
	// FailBatch stops execution of the batch and reports the failure.
	FailBatch Policy = iota
	// SkipRow passes the failing row through unmodified and keeps going.
	SkipRow
)

func (p Policy) String() string {
	switch p {
	case FailBatch:
		return "fail-batch"
	case SkipRow:
		return "skip-row"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// MarshalText renders the policy by name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Info identifies a step for diagnostics.
type Info struct {
	Line      int    `json:"line"`
	Directive string `json:"directive"` // directive source text
	Policy    Policy `json:"policy"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s (line %d)", i.Directive, i.Line)
}

// Step transforms one row at a time. Transform returns the row to pass on,
// or nil to drop it. A step holds only its compiled configuration and must
// be safe to call from multiple goroutines.
type Step interface {
	Info() Info
	Transform(r *row.Row) (*row.Row, error)
}

// Error is a runtime failure of a step on a row.
type Error struct {
	Info   Info
	Row    int    // index of the row within its batch
	Column string // column involved, if known
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: row %d: %v", e.Info, e.Row, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a step failure message. Steps return it from Transform and
// the executor wraps it in an *Error carrying step and row context.
func Errorf(column, format string, args ...any) error {
	return &failure{column: column, err: fmt.Errorf(format, args...)}
}

// failure carries the column a step failed on up to the executor.
type failure struct {
	column string
	err    error
}

func (f *failure) Error() string { return f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

// Wrap attaches step and row context to an error returned by Transform.
func Wrap(info Info, index int, err error) *Error {
	se := &Error{Info: info, Row: index, Err: err}
	var f *failure
	if errors.As(err, &f) {
		se.Column = f.column
		se.Err = f.err
	}
	var nf *row.ColumnNotFoundError
	if se.Column == "" && errors.As(err, &nf) {
		se.Column = nf.Column
	}
	return se
}

// Base carries the Info of a step. Directive implementations embed it.
type Base struct {
	info Info
}

// NewBase creates a Base.
func NewBase(info Info) Base { return Base{info: info} }

// Info returns the step identity.
func (b Base) Info() Info { return b.info }
