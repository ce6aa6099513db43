package builtin

import (
	"github.com/leapstack-labs/wrangle/pkg/expr"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// filterStep drops rows whose condition evaluates to drop.
type filterStep struct {
	step.Base
	condition *expr.Expr
	drop      bool
}

func newFilter(drop bool) func(step.Info, *usage.Arguments) (step.Step, error) {
	return func(info step.Info, args *usage.Arguments) (step.Step, error) {
		cond, _ := args.Get("condition")
		return &filterStep{
			Base:      step.NewBase(info),
			condition: expr.New(cond.String(), info.Line),
			drop:      drop,
		}, nil
	}
}

func (s *filterStep) Transform(r *row.Row) (*row.Row, error) {
	ok, err := s.condition.EvalBool(r)
	if err != nil {
		return nil, err
	}
	if ok == s.drop {
		return nil, nil
	}
	return r, nil
}

// setColumnStep assigns the result of an expression to a column, adding the
// column when the row does not have it.
type setColumnStep struct {
	step.Base
	column string
	value  *expr.Expr
}

func newSetColumn(info step.Info, args *usage.Arguments) (step.Step, error) {
	value, _ := args.Get("value")
	return &setColumnStep{
		Base:   step.NewBase(info),
		column: args.Column("column"),
		value:  expr.New(value.String(), info.Line),
	}, nil
}

func (s *setColumnStep) Transform(r *row.Row) (*row.Row, error) {
	v, err := s.value.Eval(r)
	if err != nil {
		return nil, step.Errorf(s.column, "%v", err)
	}
	r.Set(s.column, v)
	return r, nil
}
