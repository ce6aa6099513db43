package recipe

import (
	"fmt"

	"github.com/leapstack-labs/wrangle/pkg/token"
)

// Error is the interface shared by compile errors.
type Error interface {
	error
	Position() token.Position
}

// CompileError locates a failure of one directive in the recipe. Err is a
// *grammar.SyntaxError, *UnknownDirectiveError, *usage.BindingError or
// *ConstructError.
type CompileError struct {
	Line      int
	Column    int
	Directive string // directive name, empty for syntax errors
	Err       error
}

// Position returns where the failing directive starts.
func (e *CompileError) Position() token.Position {
	return token.Position{Line: e.Line, Column: e.Column}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// UnknownDirectiveError reports a directive name with no registered
// definition.
type UnknownDirectiveError struct {
	Name       string
	Suggestion string // closest registered name, if any
}

func (e *UnknownDirectiveError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown directive %q, did you mean %q?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown directive %q", e.Name)
}

// ConstructError reports a directive whose arguments bound but whose step
// could not be built from them.
type ConstructError struct {
	Directive string
	Err       error
}

func (e *ConstructError) Error() string {
	return fmt.Sprintf("%s: %v", e.Directive, e.Err)
}

func (e *ConstructError) Unwrap() error { return e.Err }
