package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/config"
	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/pkg/pipeline"
)

// NewSampleCommand creates the sample command.
func NewSampleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Preview a random sample of a source",
		Long: `Read a random sample of the configured source without transforming it.

Bernoulli sampling keeps each row with probability --fraction. Reservoir
sampling keeps exactly --limit rows chosen uniformly. The same --seed gives
the same sample. Without --limit, at most 100 rows are shown.`,
		Example: `  # Roughly 10% of a file
  wrangle sample -i data.txt --method bernoulli --fraction 0.1

  # Exactly 20 rows, reproducibly
  wrangle sample -i people.csv --driver csv --method reservoir --limit 20 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSample(cmd)
		},
	}

	addSourceFlags(cmd)
	addSamplingFlags(cmd)

	return cmd
}

func runSample(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)

	opts := cmdCtx.Cfg.Sampling
	if (opts.Method == "" || opts.Method == config.SampleNone) && opts.Fraction < 1 {
		opts.Method = config.SampleBernoulli
	}
	opts.Limit = opts.PreviewLimit()
	so := opts.Options()

	src, err := cmdCtx.OpenSource(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	res, err := cmdCtx.Engine.Run(cmd.Context(), pipeline.New(), src, engine.RunOptions{Sampling: &so})
	if err != nil {
		return fmt.Errorf("sample failed: %w", err)
	}
	return cmdCtx.Renderer.Rows(res.Columns(), res.Rows)
}
