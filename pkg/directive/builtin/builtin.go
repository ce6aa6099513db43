// Package builtin registers the standard directive catalogue.
//
// Import it for side effects:
//
//	import _ "github.com/leapstack-labs/wrangle/pkg/directive/builtin"
package builtin

import (
	"github.com/leapstack-labs/wrangle/pkg/directive"
	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/token"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

func init() {
	for _, def := range Definitions() {
		directive.Register(def)
	}
}

// Definitions returns the catalogue. Each call builds fresh definitions, so
// tests can register them in an isolated registry.
func Definitions() []directive.Definition {
	return []directive.Definition{
		{
			Name:        "rename",
			Description: "Renames an existing column.",
			Usage: usage.NewBuilder("rename").
				Define("old", token.ColumnName).
				Define("new", token.ColumnName).
				Build(),
			Policy: step.FailBatch,
			New:    newRename,
		},
		{
			Name:        "swap",
			Description: "Swaps the names of two columns.",
			Usage: usage.NewBuilder("swap").
				Define("source", token.ColumnName).
				Define("destination", token.ColumnName).
				Build(),
			Policy: step.FailBatch,
			New:    newSwap,
		},
		{
			Name:        "merge",
			Description: "Joins two columns into a new column using a delimiter.",
			Usage: usage.NewBuilder("merge").
				Define("first", token.ColumnName).
				Define("second", token.ColumnName).
				Define("destination", token.ColumnName).
				Define("delimiter", token.Text).
				Build(),
			Policy: step.SkipRow,
			New:    newMerge,
		},
		{
			Name:        "copy",
			Description: "Copies a column, optionally overwriting the destination.",
			Usage: usage.NewBuilder("copy").
				Define("source", token.ColumnName).
				Define("destination", token.ColumnName).
				DefineOptional("force", token.Boolean).
				Build(),
			Policy: step.FailBatch,
			New:    newCopy,
		},
		{
			Name:        "drop",
			Description: "Removes columns. Columns a row does not have are ignored.",
			Usage: usage.NewBuilder("drop").
				Define("columns", token.List).
				Build(),
			Policy: step.FailBatch,
			New:    newDrop,
		},
		{
			Name:        "text-distance",
			Description: "Scores the similarity of two string columns into a new column.",
			Usage: usage.NewBuilder("text-distance").
				Define("method", token.Identifier).
				Define("column1", token.ColumnName).
				Define("column2", token.ColumnName).
				Define("destination", token.ColumnName).
				Build(),
			Policy: step.SkipRow,
			New:    newTextDistance,
		},
		{
			Name:        "parse-as-csv",
			Description: "Splits a column as a delimited record into numbered columns.",
			Usage: usage.NewBuilder("parse-as-csv").
				Define("column", token.ColumnName).
				DefineOptional("delimiter", token.Text).
				DefineOptional("skip-empty", token.Boolean).
				DefineOptional("condition", token.Expression).
				DefineOptional("options", token.Properties).
				Build(),
			Policy: step.SkipRow,
			New:    newParseAsCSV,
		},
		{
			Name:        "filter-row-if-true",
			Description: "Drops rows for which the condition is true.",
			Usage: usage.NewBuilder("filter-row-if-true").
				Define("condition", token.Expression).
				Build(),
			Policy: step.FailBatch,
			New:    newFilter(true),
		},
		{
			Name:        "filter-row-if-false",
			Description: "Drops rows for which the condition is false.",
			Usage: usage.NewBuilder("filter-row-if-false").
				Define("condition", token.Expression).
				Build(),
			Policy: step.FailBatch,
			New:    newFilter(false),
		},
		{
			Name:        "set-column",
			Description: "Sets a column to the result of an expression.",
			Usage: usage.NewBuilder("set-column").
				Define("column", token.ColumnName).
				Define("value", token.Expression).
				Build(),
			Policy: step.FailBatch,
			New:    newSetColumn,
		},
		stringDirective("uppercase", "Converts a string column to upper case.", upper),
		stringDirective("lowercase", "Converts a string column to lower case.", lower),
		stringDirective("titlecase", "Converts a string column to title case.", title),
		stringDirective("trim", "Removes leading and trailing whitespace.", trim),
		stringDirective("remove-accents", "Strips diacritical marks from a string column.", removeAccents),
		{
			Name:        "fill-null-or-empty",
			Description: "Replaces null or empty values of a column with a fixed value.",
			Usage: usage.NewBuilder("fill-null-or-empty").
				Define("column", token.ColumnName).
				Define("value", token.Text).
				Build(),
			Policy: step.SkipRow,
			New:    newFillNullOrEmpty,
		},
	}
}

// stringDirective defines a directive that rewrites one string column.
func stringDirective(name, description string, fn func(string) string) directive.Definition {
	return directive.Definition{
		Name:        name,
		Description: description,
		Usage: usage.NewBuilder(name).
			Define("column", token.ColumnName).
			Build(),
		Policy: step.SkipRow,
		New: func(info step.Info, args *usage.Arguments) (step.Step, error) {
			return &stringStep{Base: step.NewBase(info), column: args.Column("column"), fn: fn}, nil
		},
	}
}
