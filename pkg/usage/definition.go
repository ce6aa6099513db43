// Package usage declares directive argument contracts and binds parsed
// token groups against them.
package usage

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/wrangle/pkg/token"
)

// Param is one declared directive parameter.
type Param struct {
	Name     string
	Kind     token.Kind
	Optional bool
}

// String renders the parameter as it appears in a usage line.
func (p Param) String() string {
	s := fmt.Sprintf("<%s:%s>", p.Name, p.Kind.Short())
	if p.Optional {
		return "[" + s + "]"
	}
	return s
}

// Definition is the immutable argument contract of a directive.
type Definition struct {
	directive string
	params    []Param
}

// Directive returns the directive name.
func (d *Definition) Directive() string { return d.directive }

// Params returns a copy of the declared parameters in order.
func (d *Definition) Params() []Param {
	cp := make([]Param, len(d.params))
	copy(cp, d.params)
	return cp
}

// Len returns the number of declared parameters.
func (d *Definition) Len() int { return len(d.params) }

// Param returns the declared parameter with the given name.
func (d *Definition) Param(name string) (Param, bool) {
	for _, p := range d.params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Required returns the number of required parameters.
func (d *Definition) Required() int {
	n := 0
	for _, p := range d.params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Variadic reports whether the final parameter absorbs trailing tokens.
// This is the case when its kind is LIST or PROPERTIES.
func (d *Definition) Variadic() bool {
	if len(d.params) == 0 {
		return false
	}
	k := d.params[len(d.params)-1].Kind
	return k == token.List || k == token.Properties
}

// String renders the usage line, e.g. `rename <old:column> <new:column>`.
func (d *Definition) String() string {
	parts := make([]string, 0, len(d.params)+1)
	parts = append(parts, d.directive)
	for _, p := range d.params {
		parts = append(parts, p.String())
	}
	s := strings.Join(parts, " ")
	if d.Variadic() {
		s += "..."
	}
	return s
}

// Builder provides a fluent API for constructing definitions.
type Builder struct {
	def *Definition
}

// NewBuilder starts a definition for the named directive.
func NewBuilder(directive string) *Builder {
	return &Builder{def: &Definition{directive: directive}}
}

// Define adds a required parameter.
func (b *Builder) Define(name string, kind token.Kind) *Builder {
	b.def.params = append(b.def.params, Param{Name: name, Kind: kind})
	return b
}

// DefineOptional adds an optional parameter.
func (b *Builder) DefineOptional(name string, kind token.Kind) *Builder {
	b.def.params = append(b.def.params, Param{Name: name, Kind: kind, Optional: true})
	return b
}

// Build returns the definition. Definitions are declared at init time, so a
// duplicate parameter name is a programming error and panics.
func (b *Builder) Build() *Definition {
	seen := make(map[string]struct{}, len(b.def.params))
	for _, p := range b.def.params {
		if _, dup := seen[p.Name]; dup {
			panic(fmt.Sprintf("usage: directive %q declares parameter %q twice", b.def.directive, p.Name))
		}
		seen[p.Name] = struct{}{}
	}

	def := &Definition{
		directive: b.def.directive,
		params:    make([]Param, len(b.def.params)),
	}
	copy(def.params, b.def.params)
	return def
}
