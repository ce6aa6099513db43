package grammar

import (
	"fmt"

	"github.com/leapstack-labs/wrangle/pkg/token"
)

// SyntaxError reports a directive that could not be tokenized.
// No token group is produced for the directive that caused it.
type SyntaxError struct {
	Pos  token.Position
	Text string // offending source line
	Msg  string
}

// NewSyntaxError creates a new syntax error.
func NewSyntaxError(pos token.Position, text, msg string) *SyntaxError {
	return &SyntaxError{Pos: pos, Text: text, Msg: msg}
}

// NewSyntaxErrorf creates a new syntax error with formatting.
func NewSyntaxErrorf(pos token.Position, text, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Text: text, Msg: fmt.Sprintf(format, args...)}
}

// Position returns where the error was detected.
func (e *SyntaxError) Position() token.Position { return e.Pos }

// Line returns the 1-based source line.
func (e *SyntaxError) Line() int { return e.Pos.Line }

func (e *SyntaxError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%d:%d: %s: %q", e.Pos.Line, e.Pos.Column, e.Msg, e.Text)
	}
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}
