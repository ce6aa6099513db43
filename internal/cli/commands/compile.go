package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/cli/output"
	"github.com/leapstack-labs/wrangle/pkg/recipe"
)

// watchDebounce coalesces bursts of file events from one save.
const watchDebounce = 100 * time.Millisecond

// CompileOutput is the JSON form of a compile result.
type CompileOutput struct {
	OK     bool         `json:"ok"`
	Steps  []StepOutput `json:"steps,omitempty"`
	Errors []string     `json:"errors,omitempty"`
}

// StepOutput describes one compiled step.
type StepOutput struct {
	Line      int    `json:"line"`
	Directive string `json:"directive"`
	Policy    string `json:"policy"`
}

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Execute string
	Watch   bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile [recipe-file]",
		Short: "Check a recipe and list its steps",
		Long: `Compile a recipe without running it. All errors are reported with
their line numbers. With --watch the recipe is recompiled on every save.

Recipe files hold one directive per line, or a YAML document with a
"directives" list.`,
		Example: `  # Check a recipe file
  wrangle compile clean.wr

  # Check inline directives
  wrangle compile -e 'parse-as-csv :body'

  # Recompile on save
  wrangle compile clean.wr --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if opts.Watch {
				if path == "" {
					return errors.New("--watch requires a recipe file")
				}
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()
				return watchRecipe(ctx, NewCommandContext(cmd), path)
			}
			return runCompile(NewCommandContext(cmd), path, opts.Execute)
		},
	}

	cmd.Flags().StringVarP(&opts.Execute, "execute", "e", "", "Inline recipe text")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Recompile when the recipe file changes")

	return cmd
}

func runCompile(cmdCtx *CommandContext, path, inline string) error {
	text, err := readRecipe(path, inline)
	if err != nil {
		return err
	}

	status := cmdCtx.Engine.Compile(text)
	r := cmdCtx.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(toCompileOutput(status)); err != nil {
			return err
		}
		if !status.OK() {
			return fmt.Errorf("recipe has %d error(s)", len(status.Errors))
		}
		return nil
	}

	if !status.OK() {
		return cmdCtx.ReportCompileErrors(status)
	}
	printSteps(r, status)
	return nil
}

func toCompileOutput(status *recipe.Status) CompileOutput {
	out := CompileOutput{OK: status.OK()}
	for _, err := range status.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	if status.Pipeline != nil {
		for _, s := range status.Pipeline.Steps() {
			info := s.Info()
			out.Steps = append(out.Steps, StepOutput{Line: info.Line, Directive: info.Directive, Policy: info.Policy.String()})
		}
	}
	return out
}

func printSteps(r *output.Renderer, status *recipe.Status) {
	steps := status.Pipeline.Steps()
	if len(steps) > 0 {
		t := r.Table("Line", "Directive", "On failure")
		for _, s := range steps {
			info := s.Info()
			t.AppendRow([]any{info.Line, info.Directive, info.Policy.String()})
		}
		t.Render()
	}
	r.Success(fmt.Sprintf("Compiled %d directive(s)", len(steps)))
}

// watchRecipe compiles path, then recompiles it on every change until ctx
// is done. Compile errors are printed and do not stop watching.
func watchRecipe(ctx context.Context, cmdCtx *CommandContext, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Editors often replace the file on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	compile := func() {
		if err := runCompile(cmdCtx, abs, ""); err != nil {
			cmdCtx.Renderer.Error(err)
		}
	}
	compile()

	changed := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != abs {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})

		case <-changed:
			cmdCtx.Logger.Debug("recipe changed, recompiling", slog.String("file", abs))
			compile()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Error("watcher error", "error", err)
		}
	}
}
