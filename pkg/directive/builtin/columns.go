package builtin

import (
	"fmt"

	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/token"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// renameStep renames a column.
type renameStep struct {
	step.Base
	from, to string
}

func newRename(info step.Info, args *usage.Arguments) (step.Step, error) {
	return &renameStep{Base: step.NewBase(info), from: args.Column("old"), to: args.Column("new")}, nil
}

func (s *renameStep) Transform(r *row.Row) (*row.Row, error) {
	idx := r.Find(s.from)
	if idx < 0 {
		return nil, &row.ColumnNotFoundError{Column: s.from}
	}
	if s.from != s.to && r.Find(s.to) >= 0 {
		return nil, step.Errorf(s.to, "Column '%s' already exists.", s.to)
	}
	r.SetColumn(idx, s.to)
	return r, nil
}

// swapStep exchanges the names of two columns. Both must exist.
type swapStep struct {
	step.Base
	source, destination string
}

func newSwap(info step.Info, args *usage.Arguments) (step.Step, error) {
	return &swapStep{
		Base:        step.NewBase(info),
		source:      args.Column("source"),
		destination: args.Column("destination"),
	}, nil
}

func (s *swapStep) Transform(r *row.Row) (*row.Row, error) {
	sidx := r.Find(s.source)
	didx := r.Find(s.destination)

	if sidx < 0 {
		return nil, step.Errorf(s.source, "Source column not found.")
	}
	if didx < 0 {
		return nil, step.Errorf(s.destination, "Destination column not found.")
	}

	r.SetColumn(sidx, s.destination)
	r.SetColumn(didx, s.source)
	return r, nil
}

// mergeStep adds first + delimiter + second as a new string column. Rows
// missing either source column pass through unchanged.
type mergeStep struct {
	step.Base
	first, second, destination, delimiter string
}

func newMerge(info step.Info, args *usage.Arguments) (step.Step, error) {
	return &mergeStep{
		Base:        step.NewBase(info),
		first:       args.Column("first"),
		second:      args.Column("second"),
		destination: args.Column("destination"),
		delimiter:   args.Text("delimiter"),
	}, nil
}

func (s *mergeStep) Transform(r *row.Row) (*row.Row, error) {
	idx1 := r.Find(s.first)
	idx2 := r.Find(s.second)
	if idx1 < 0 || idx2 < 0 {
		return r, nil
	}

	merged := fmt.Sprint(r.Value(idx1)) + s.delimiter + fmt.Sprint(r.Value(idx2))
	r.Add(s.destination, row.TypeString, merged)
	return r, nil
}

// copyStep duplicates a column under a new name.
type copyStep struct {
	step.Base
	source, destination string
	force               bool
}

func newCopy(info step.Info, args *usage.Arguments) (step.Step, error) {
	return &copyStep{
		Base:        step.NewBase(info),
		source:      args.Column("source"),
		destination: args.Column("destination"),
		force:       args.BoolOr("force", false),
	}, nil
}

func (s *copyStep) Transform(r *row.Row) (*row.Row, error) {
	sidx := r.Find(s.source)
	if sidx < 0 {
		return nil, &row.ColumnNotFoundError{Column: s.source}
	}
	src := r.Column(sidx)

	didx := r.Find(s.destination)
	if didx >= 0 {
		if !s.force {
			return nil, step.Errorf(s.destination, "Destination column '%s' already exists. Use force to overwrite.", s.destination)
		}
		r.SetValue(didx, src.Value)
		return r, nil
	}

	r.Add(s.destination, src.Type, src.Value)
	return r, nil
}

// dropStep removes columns by name.
type dropStep struct {
	step.Base
	columns []string
}

func newDrop(info step.Info, args *usage.Arguments) (step.Step, error) {
	items := args.Items("columns")
	columns := make([]string, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case token.ColumnName, token.Identifier, token.Text:
			columns = append(columns, it.String())
		default:
			return nil, fmt.Errorf("drop expects column names, found %s", it.Describe())
		}
	}
	return &dropStep{Base: step.NewBase(info), columns: columns}, nil
}

func (s *dropStep) Transform(r *row.Row) (*row.Row, error) {
	for _, name := range s.columns {
		for idx := r.Find(name); idx >= 0; idx = r.Find(name) {
			r.Remove(idx)
		}
	}
	return r, nil
}
