// Package commands implements the wrangle subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/cli/output"
	"github.com/leapstack-labs/wrangle/internal/config"
	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/internal/source"
	"github.com/leapstack-labs/wrangle/pkg/recipe"
)

// stdinPath reads file sources from standard input.
const stdinPath = "-"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the configuration stored
// in the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	eng := engine.New(engine.Config{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		CacheSize:   cfg.Server.CacheSize,
		Sampling:    cfg.Sampling.Options(),
		Logger:      logger,
	})

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}
}

// OpenSource opens the configured source. File drivers read standard input
// when the input is "-".
func (c *CommandContext) OpenSource(cmd *cobra.Command) (source.Source, error) {
	cfg := c.Cfg.Source
	if cfg.DSN == stdinPath {
		switch cfg.Driver {
		case "lines":
			column := cfg.Options["column"]
			if column == "" {
				column = source.BodyColumn
			}
			return source.NewLines(cmd.InOrStdin(), column), nil
		case "csv":
			opts := source.CSVOptions{NoHeader: cfg.Options["header"] == "false"}
			if d := cfg.Options["delimiter"]; d != "" {
				if utf8.RuneCountInString(d) != 1 {
					return nil, fmt.Errorf("csv delimiter must be a single character, got %q", d)
				}
				opts.Delimiter, _ = utf8.DecodeRuneInString(d)
			}
			return source.NewCSV(cmd.InOrStdin(), opts), nil
		}
	}

	src, err := source.Open(cmd.Context(), cfg, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	return src, nil
}

// ReportCompileErrors prints each compile error and returns a summary error.
func (c *CommandContext) ReportCompileErrors(status *recipe.Status) error {
	for _, err := range status.Errors {
		c.Renderer.Error(err)
	}
	return fmt.Errorf("recipe has %d error(s)", len(status.Errors))
}

// readRecipe returns inline text, or the recipe stored at path.
func readRecipe(path, inline string) (string, error) {
	switch {
	case inline != "" && path != "":
		return "", errors.New("pass either a recipe file or --execute, not both")
	case inline != "":
		return inline, nil
	case path != "":
		return recipe.Load(path)
	default:
		return "", errors.New("a recipe file or --execute is required")
	}
}

// addSourceFlags registers flags that override the configured source.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "", "Input file or DSN (- reads stdin)")
	cmd.Flags().String("driver", "", "Source driver ("+driverList()+")")
	cmd.Flags().String("query", "", "Query for database drivers")
	cmd.Flags().StringToString("option", nil, "Driver option key=value (repeatable)")

	_ = cmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return source.Drivers(), cobra.ShellCompDirectiveNoFileComp
	})
}

// addSamplingFlags registers flags that override the sampling settings.
func addSamplingFlags(cmd *cobra.Command) {
	cmd.Flags().String("method", "", "Sampling method (none|bernoulli|reservoir)")
	cmd.Flags().Float64("fraction", 1, "Bernoulli sampling fraction in [0, 1]")
	cmd.Flags().Int("limit", 0, "Maximum rows to read, and the reservoir size")
	cmd.Flags().Uint64("seed", 0, "Random seed for reproducible samples")

	_ = cmd.RegisterFlagCompletionFunc("method", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.SampleNone, config.SampleBernoulli, config.SampleReservoir}, cobra.ShellCompDirectiveNoFileComp
	})
}

// addExecutionFlags registers batch execution flags.
func addExecutionFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch-size", 0, "Rows per batch")
	cmd.Flags().Int("concurrency", 0, "Batches executed in parallel")
}

func driverList() string {
	return strings.Join(source.Drivers(), "|")
}

// signalContext cancels on interrupt or termination.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
