// Package recipe compiles recipe text into executable pipelines.
package recipe

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/wrangle/pkg/directive"
	"github.com/leapstack-labs/wrangle/pkg/grammar"
	"github.com/leapstack-labs/wrangle/pkg/pipeline"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/textdistance"
	"github.com/leapstack-labs/wrangle/pkg/token"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// suggestThreshold is the minimum similarity for a "did you mean" hint.
const suggestThreshold = 0.6

// Status is the outcome of compiling a recipe.
type Status struct {
	Pipeline *pipeline.Pipeline // nil when Errors is non-empty
	Errors   []error            // *CompileError values in line order
	Groups   []token.Group      // lexed directives
	Symbols  []*usage.Arguments // bound arguments per directive, in order
}

// OK reports whether the recipe compiled without errors.
func (s *Status) OK() bool { return len(s.Errors) == 0 }

// Err joins all compile errors, or returns nil.
func (s *Status) Err() error { return errors.Join(s.Errors...) }

// Compiler turns recipe text into pipelines.
type Compiler struct {
	lookup directive.Lookup
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry resolves directives from l instead of the process-wide
// registry.
func WithRegistry(l directive.Lookup) Option {
	return func(c *Compiler) { c.lookup = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCompiler creates a compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		lookup: directive.Default(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile lexes, resolves, binds and constructs every directive of text.
// Failures do not stop compilation; all of them are collected in line order.
// Compile is pure and safe for concurrent use.
func (c *Compiler) Compile(text string) *Status {
	groups, syntaxErrs := grammar.Parse(text)
	status := &Status{Groups: groups}

	for _, err := range syntaxErrs {
		ce := &CompileError{Err: err}
		var se *grammar.SyntaxError
		if errors.As(err, &se) {
			ce.Line, ce.Column = se.Pos.Line, se.Pos.Column
		}
		status.Errors = append(status.Errors, ce)
	}

	steps := make([]step.Step, 0, len(groups))
	for _, g := range groups {
		s, args, err := c.compileGroup(g)
		if args != nil {
			status.Symbols = append(status.Symbols, args)
		}
		if err != nil {
			status.Errors = append(status.Errors, &CompileError{
				Line:      g.Line,
				Column:    g.Pos.Column,
				Directive: g.Directive,
				Err:       err,
			})
			continue
		}
		steps = append(steps, s)
	}

	sort.SliceStable(status.Errors, func(i, j int) bool {
		a, b := status.Errors[i].(*CompileError), status.Errors[j].(*CompileError)
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	if status.OK() {
		status.Pipeline = pipeline.New(steps...)
	}

	c.logger.Debug("recipe compiled", "directives", len(groups), "errors", len(status.Errors))
	return status
}

func (c *Compiler) compileGroup(g token.Group) (step.Step, *usage.Arguments, error) {
	def, ok := c.lookup.Get(g.Directive)
	if !ok {
		return nil, nil, &UnknownDirectiveError{Name: g.Directive, Suggestion: c.suggest(g.Directive)}
	}

	args, err := usage.Bind(def.Usage, g)
	if err != nil {
		return nil, nil, err
	}

	info := step.Info{Line: g.Line, Directive: g.Source, Policy: def.Policy}
	s, err := def.New(info, args)
	if err != nil {
		return nil, args, &ConstructError{Directive: g.Directive, Err: err}
	}
	return s, args, nil
}

// suggest returns the registered directive name closest to name.
func (c *Compiler) suggest(name string) string {
	lister, ok := c.lookup.(interface{ List() []directive.Definition })
	if !ok {
		return ""
	}

	best, bestScore := "", suggestThreshold
	for _, def := range lister.List() {
		score := textdistance.Levenshtein(name, def.Name)
		if score > bestScore || (best == "" && score == bestScore) {
			best, bestScore = def.Name, score
		}
	}
	return best
}
