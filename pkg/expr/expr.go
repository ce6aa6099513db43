// Package expr evaluates the expression blocks of directives against rows.
//
// Expressions are Starlark expressions. The columns of the row being
// evaluated are predeclared as globals, so `price * qty > 100` reads the
// price and qty columns. Columns whose names are not identifiers, or that
// may be missing, are reached with get("name", default).
package expr

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/leapstack-labs/wrangle/pkg/row"
)

// fileOptions enables the dialect features expression blocks may use.
var fileOptions = &syntax.FileOptions{
	Set: true,
}

// Expr is an expression block. It is not parsed until first evaluated.
type Expr struct {
	src  string
	line int
}

// New creates an expression from a block payload. line is the recipe line
// used in error messages.
func New(src string, line int) *Expr {
	return &Expr{src: src, line: line}
}

// Source returns the expression text.
func (e *Expr) Source() string { return e.src }

// Eval evaluates the expression against r and returns a Go value.
func (e *Expr) Eval(r *row.Row) (any, error) {
	v, err := e.eval(r)
	if err != nil {
		return nil, err
	}
	out, err := ToGo(v)
	if err != nil {
		return nil, e.errorf("converting result: %v", err)
	}
	return out, nil
}

// EvalBool evaluates the expression against r and reports its truth value.
func (e *Expr) EvalBool(r *row.Row) (bool, error) {
	v, err := e.eval(r)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

func (e *Expr) eval(r *row.Row) (starlark.Value, error) {
	globals, err := Globals(r)
	if err != nil {
		return nil, e.errorf("%v", err)
	}

	// Blocks may span lines; parentheses make the line breaks insignificant.
	src := e.src
	if strings.Contains(src, "\n") {
		src = "(" + src + "\n)"
	}

	thread := newThread(fmt.Sprintf("line %d", e.line))
	v, err := starlark.EvalOptions(fileOptions, thread, "expression", src, globals)
	if err != nil {
		return nil, e.errorf("%s", message(err))
	}
	return v, nil
}

// Globals returns the predeclared environment for r: one global per column
// whose name is a valid identifier, plus the get builtin. The first column
// of a given name wins.
func Globals(r *row.Row) (starlark.StringDict, error) {
	globals := make(starlark.StringDict, r.Len()+1)
	byName := make(map[string]starlark.Value, r.Len())

	for i := 0; i < r.Len(); i++ {
		name := r.Name(i)
		if _, seen := byName[name]; seen {
			continue
		}
		v, err := ToStarlark(r.Value(i))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		byName[name] = v
		if isIdentifier(name) {
			globals[name] = v
		}
	}

	globals["get"] = starlark.NewBuiltin("get", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name, &def); err != nil {
			return nil, err
		}
		if v, ok := byName[name]; ok {
			return v, nil
		}
		return def, nil
	})

	return globals, nil
}

// newThread creates a Starlark thread for one evaluation.
func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Expressions should not print
		},
	}
}

func message(err error) string {
	if ee, ok := err.(*starlark.EvalError); ok {
		return ee.Msg
	}
	return err.Error()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	_, reserved := keywords[s]
	return !reserved
}

// keywords are the reserved words of the expression language.
var keywords = map[string]struct{}{
	"and": {}, "as": {}, "assert": {}, "break": {}, "class": {}, "continue": {},
	"def": {}, "del": {}, "elif": {}, "else": {}, "except": {}, "finally": {},
	"for": {}, "from": {}, "global": {}, "if": {}, "import": {}, "in": {},
	"is": {}, "lambda": {}, "load": {}, "nonlocal": {}, "not": {}, "or": {},
	"pass": {}, "raise": {}, "return": {}, "try": {}, "while": {}, "with": {},
	"yield": {},
}

// Error is a failure to evaluate an expression.
type Error struct {
	Line    int
	Expr    string
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: error evaluating %q: %s", e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("error evaluating %q: %s", e.Expr, e.Message)
}

func (e *Expr) errorf(format string, args ...any) *Error {
	return &Error{Line: e.line, Expr: e.src, Message: fmt.Sprintf(format, args...)}
}
