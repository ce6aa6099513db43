package builtin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/wrangle/pkg/expr"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// csvOptions are the prop: { } settings accepted by parse-as-csv.
type csvOptions struct {
	LazyQuotes bool   `mapstructure:"lazy-quotes"`
	Trim       bool   `mapstructure:"trim"`
	Comment    string `mapstructure:"comment"`
	Prefix     string `mapstructure:"prefix"`
}

// parseCSVStep splits a column into <prefix>_1, <prefix>_2, ... columns.
type parseCSVStep struct {
	step.Base
	column    string
	delimiter rune
	skipEmpty bool
	condition *expr.Expr
	opts      csvOptions
}

func newParseAsCSV(info step.Info, args *usage.Arguments) (step.Step, error) {
	delim := args.TextOr("delimiter", ",")
	if utf8.RuneCountInString(delim) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", delim)
	}
	d, _ := utf8.DecodeRuneInString(delim)

	s := &parseCSVStep{
		Base:      step.NewBase(info),
		column:    args.Column("column"),
		delimiter: d,
		skipEmpty: args.BoolOr("skip-empty", false),
	}

	if args.Contains("condition") {
		cond, _ := args.Get("condition")
		s.condition = expr.New(cond.String(), info.Line)
	}

	if args.Contains("options") {
		opts, _ := args.Get("options")
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &s.opts,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create options decoder: %w", err)
		}
		if err := dec.Decode(opts.Native()); err != nil {
			return nil, fmt.Errorf("invalid options: %w", err)
		}
		if utf8.RuneCountInString(s.opts.Comment) > 1 {
			return nil, fmt.Errorf("comment must be a single character, got %q", s.opts.Comment)
		}
	}
	if s.opts.Prefix == "" {
		s.opts.Prefix = s.column
	}

	return s, nil
}

func (s *parseCSVStep) Transform(r *row.Row) (*row.Row, error) {
	idx := r.Find(s.column)
	if idx < 0 {
		return nil, &row.ColumnNotFoundError{Column: s.column}
	}

	if s.condition != nil {
		ok, err := s.condition.EvalBool(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			return r, nil
		}
	}

	var text string
	switch v := r.Value(idx).(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case nil:
		text = ""
	default:
		return nil, step.Errorf(s.column, "column '%s' has type %s, expected a string", s.column, row.TypeOf(v))
	}

	if strings.TrimSpace(text) == "" {
		if s.skipEmpty {
			return nil, nil
		}
		return r, nil
	}

	fields, err := s.split(text)
	if err != nil {
		return nil, step.Errorf(s.column, "failed to parse '%s' as csv: %v", s.column, err)
	}
	for i, f := range fields {
		if s.opts.Trim {
			f = strings.TrimSpace(f)
		}
		r.Add(fmt.Sprintf("%s_%d", s.opts.Prefix, i+1), row.TypeString, f)
	}
	return r, nil
}

func (s *parseCSVStep) split(text string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = s.delimiter
	reader.LazyQuotes = s.opts.LazyQuotes
	reader.TrimLeadingSpace = s.opts.Trim
	reader.FieldsPerRecord = -1
	if s.opts.Comment != "" {
		reader.Comment, _ = utf8.DecodeRuneInString(s.opts.Comment)
	}

	fields, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return fields, err
}
