package usage

import (
	"github.com/leapstack-labs/wrangle/pkg/token"
)

// Arguments is the name-indexed result of a successful bind. Only parameters
// that received a token are present.
type Arguments struct {
	directive string
	line      int
	names     []string
	values    map[string]token.Token
}

func newArguments(directive string, line int) *Arguments {
	return &Arguments{
		directive: directive,
		line:      line,
		values:    make(map[string]token.Token),
	}
}

func (a *Arguments) set(name string, tok token.Token) {
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = tok
}

// Directive returns the directive the arguments were bound for.
func (a *Arguments) Directive() string { return a.directive }

// Line returns the source line of the directive.
func (a *Arguments) Line() int { return a.line }

// Size returns the number of bound parameters.
func (a *Arguments) Size() int { return len(a.values) }

// Contains reports whether name was bound.
func (a *Arguments) Contains(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Names returns the bound parameter names in declaration order.
func (a *Arguments) Names() []string {
	cp := make([]string, len(a.names))
	copy(cp, a.names)
	return cp
}

// Get returns the token bound to name.
func (a *Arguments) Get(name string) (token.Token, bool) {
	t, ok := a.values[name]
	return t, ok
}

// Column returns the column name bound to name, or "".
func (a *Arguments) Column(name string) string {
	return a.values[name].String()
}

// Text returns the string value bound to name, or "".
func (a *Arguments) Text(name string) string {
	return a.values[name].String()
}

// TextOr returns the string bound to name, or def when absent.
func (a *Arguments) TextOr(name, def string) string {
	if t, ok := a.values[name]; ok {
		return t.String()
	}
	return def
}

// BoolOr returns the boolean bound to name, or def when absent.
func (a *Arguments) BoolOr(name string, def bool) bool {
	if t, ok := a.values[name]; ok {
		return t.Bool()
	}
	return def
}

// Float returns the number bound to name as float64.
func (a *Arguments) Float(name string) float64 {
	return a.values[name].Float()
}

// Items returns the elements of a LIST argument.
func (a *Arguments) Items(name string) []token.Token {
	return a.values[name].Items()
}

// Properties returns the entries of a PROPERTIES argument.
func (a *Arguments) Properties(name string) map[string]token.Token {
	return a.values[name].Properties()
}

// Native returns the bound values as plain Go values keyed by parameter name.
func (a *Arguments) Native() map[string]any {
	out := make(map[string]any, len(a.values))
	for name, t := range a.values {
		out[name] = t.Native()
	}
	return out
}
