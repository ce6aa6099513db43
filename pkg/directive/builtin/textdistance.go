package builtin

import (
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/textdistance"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// textDistanceStep always adds the destination column. Rows where either
// input is missing or not a string score 0.
type textDistanceStep struct {
	step.Base
	measure          textdistance.Measure
	column1, column2 string
	destination      string
}

func newTextDistance(info step.Info, args *usage.Arguments) (step.Step, error) {
	method, _ := args.Get("method")
	measure, err := textdistance.Lookup(method.String())
	if err != nil {
		return nil, err
	}
	return &textDistanceStep{
		Base:        step.NewBase(info),
		measure:     measure,
		column1:     args.Column("column1"),
		column2:     args.Column("column2"),
		destination: args.Column("destination"),
	}, nil
}

func (s *textDistanceStep) Transform(r *row.Row) (*row.Row, error) {
	score := 0.0
	if a, ok := stringValue(r, s.column1); ok {
		if b, ok := stringValue(r, s.column2); ok {
			score = s.measure(a, b)
		}
	}
	r.Add(s.destination, row.TypeFloat, score)
	return r, nil
}

// stringValue returns the value of column when it exists and is a string.
func stringValue(r *row.Row, column string) (string, bool) {
	v, ok := r.Get(column)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
