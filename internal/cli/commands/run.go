package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/engine"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Execute string
	Quiet   bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [recipe-file]",
		Short: "Run a recipe over a source",
		Long: `Compile a recipe and run it over every row of the configured source.

Rows are read in batches and batches are transformed in parallel; output
keeps the source order. Rows a directive fails on are reported on stderr
when the directive skips failures, and stop the run otherwise.

Output adapts to environment:
  - Terminal: Table
  - Piped/Scripted: JSON`,
		Example: `  # Split lines of a file into columns
  wrangle run -e 'parse-as-csv :body' -i data.txt

  # Run a recipe file over a CSV file and write CSV
  wrangle run clean.wr --driver csv -i people.csv -o csv

  # Run over a query
  wrangle run clean.wr --driver sqlite -i app.db --query 'SELECT * FROM users'

  # Read stdin
  cat data.txt | wrangle run clean.wr -i -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runRecipe(cmd, path, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Execute, "execute", "e", "", "Inline recipe text")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Do not report skipped rows")
	addSourceFlags(cmd)
	addSamplingFlags(cmd)
	addExecutionFlags(cmd)

	return cmd
}

func runRecipe(cmd *cobra.Command, path string, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	text, err := readRecipe(path, opts.Execute)
	if err != nil {
		return err
	}
	status := cmdCtx.Engine.Compile(text)
	if !status.OK() {
		return cmdCtx.ReportCompileErrors(status)
	}

	src, err := cmdCtx.OpenSource(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := cmdCtx.Engine.Run(ctx, status.Pipeline, src, engine.RunOptions{})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if !opts.Quiet {
		for _, se := range res.Skipped {
			r.Warning(fmt.Sprintf("row %d skipped: %v", se.Row, se))
		}
	}

	cmdCtx.Logger.Info("run completed",
		"rows_read", res.Read,
		"rows_out", len(res.Rows),
		"skipped", len(res.Skipped),
		"dropped", res.Dropped,
		"elapsed", res.Elapsed,
	)
	return r.Rows(res.Columns(), res.Rows)
}
