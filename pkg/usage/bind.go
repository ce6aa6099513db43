package usage

import (
	"strings"

	"github.com/leapstack-labs/wrangle/pkg/token"
)

// Bind matches a token group against a definition.
//
// Parameters and tokens are walked with two cursors. A token whose kind
// matches the current parameter is bound and both cursors advance. An
// optional parameter that does not match, or that finds no token left, is
// skipped without consuming a token. A required parameter in the same
// situation fails the bind. Tokens left over once every parameter has been
// visited are an error unless the final parameter is variadic.
//
// When two optional parameters share a kind and only one token is supplied,
// the first declared parameter receives it.
func Bind(def *Definition, group token.Group) (*Arguments, error) {
	args := newArguments(def.directive, group.Line)
	tokens := group.Tokens
	last := len(def.params) - 1
	ti := 0

	for pi, p := range def.params {
		if ti >= len(tokens) {
			if p.Optional {
				continue
			}
			return nil, def.bindingError(p, Missing, nil)
		}

		if pi == last && def.Variadic() {
			bound, n, ok := absorb(p, tokens[ti:])
			if !ok {
				if p.Optional {
					continue
				}
				tok := tokens[ti]
				return nil, def.bindingError(p, Mismatch, &tok)
			}
			args.set(p.Name, bound)
			ti += n
			continue
		}

		bound, ok := accept(p.Kind, tokens[ti])
		if !ok {
			if p.Optional {
				continue
			}
			tok := tokens[ti]
			return nil, def.bindingError(p, Mismatch, &tok)
		}
		args.set(p.Name, bound)
		ti++
	}

	if ti < len(tokens) {
		tok := tokens[ti]
		return nil, &BindingError{
			Directive: def.directive,
			Reason:    Extra,
			Token:     &tok,
			Usage:     def.String(),
		}
	}

	return args, nil
}

// accept reports whether tok satisfies kind. A bare identifier is accepted as
// a column name and re-tagged.
func accept(kind token.Kind, tok token.Token) (token.Token, bool) {
	if tok.Kind == kind {
		return tok, true
	}
	if kind == token.ColumnName && tok.Kind == token.Identifier {
		return tok.WithKind(token.ColumnName), true
	}
	return token.Token{}, false
}

// absorb binds a variadic parameter to the remaining tokens. A LIST parameter
// takes every remaining token, flattening nested LIST tokens one level. A
// PROPERTIES parameter merges the leading run of PROPERTIES tokens; anything
// after that run is left for the Extra check.
func absorb(p Param, rest []token.Token) (token.Token, int, bool) {
	switch p.Kind {
	case token.List:
		if len(rest) == 1 && rest[0].Kind == token.List {
			return rest[0], 1, true
		}
		var items []token.Token
		raws := make([]string, 0, len(rest))
		for _, t := range rest {
			if t.Kind == token.List {
				items = append(items, t.Items()...)
			} else {
				items = append(items, t)
			}
			raws = append(raws, t.Raw)
		}
		return token.NewList(items, strings.Join(raws, " "), rest[0].Pos), len(rest), true

	case token.Properties:
		if rest[0].Kind != token.Properties {
			return token.Token{}, 0, false
		}
		merged := make(map[string]token.Token)
		raws := make([]string, 0, len(rest))
		n := 0
		for _, t := range rest {
			if t.Kind != token.Properties {
				break
			}
			for k, v := range t.Properties() {
				merged[k] = v
			}
			raws = append(raws, t.Raw)
			n++
		}
		if n == 1 {
			return rest[0], 1, true
		}
		return token.NewProperties(merged, rest[0].Label, strings.Join(raws, " "), rest[0].Pos), n, true
	}
	return token.Token{}, 0, false
}

func (d *Definition) bindingError(p Param, reason Reason, tok *token.Token) *BindingError {
	return &BindingError{
		Directive: d.directive,
		Param:     p.Name,
		Expected:  p.Kind,
		Reason:    reason,
		Token:     tok,
		Usage:     d.String(),
	}
}
