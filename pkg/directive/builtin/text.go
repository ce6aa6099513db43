package builtin

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// stringStep rewrites a string column in place. Rows without the column, or
// where it does not hold a string, are left alone.
type stringStep struct {
	step.Base
	column string
	fn     func(string) string
}

func (s *stringStep) Transform(r *row.Row) (*row.Row, error) {
	idx := r.Find(s.column)
	if idx < 0 {
		return r, nil
	}
	if v, ok := r.Value(idx).(string); ok {
		r.SetValue(idx, s.fn(v))
	}
	return r, nil
}

// Casers and transformers hold state, so each call builds its own.

func upper(s string) string { return cases.Upper(language.Und).String(s) }

func lower(s string) string { return cases.Lower(language.Und).String(s) }

func title(s string) string { return cases.Title(language.Und).String(s) }

func trim(s string) string { return strings.TrimSpace(s) }

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// fillStep replaces null or empty values.
type fillStep struct {
	step.Base
	column string
	value  string
}

func newFillNullOrEmpty(info step.Info, args *usage.Arguments) (step.Step, error) {
	return &fillStep{Base: step.NewBase(info), column: args.Column("column"), value: args.Text("value")}, nil
}

func (s *fillStep) Transform(r *row.Row) (*row.Row, error) {
	idx := r.Find(s.column)
	if idx < 0 {
		return r, nil
	}
	switch v := r.Value(idx).(type) {
	case nil:
		r.SetValue(idx, s.value)
	case string:
		if v == "" {
			r.SetValue(idx, s.value)
		}
	}
	return r, nil
}
