package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/internal/source"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
)

const (
	replPrompt      = "wrangle> "
	replPreviewRows = 10
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Build a recipe interactively",
		Long: `Start an interactive session that builds a recipe one directive at a time.

A sample of the configured source is read once. Each directive entered is
compiled together with the ones before it and the transformed sample is
previewed. Directives that fail to compile are not added.`,
		Example: `  # Explore a file
  wrangle repl -i data.txt

  # Explore a CSV sample of 50 rows
  wrangle repl -i people.csv --driver csv --method reservoir --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd)
		},
	}

	addSourceFlags(cmd)
	addSamplingFlags(cmd)

	return cmd
}

func runRepl(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)

	sess, err := newReplSession(cmd, cmdCtx)
	if err != nil {
		return err
	}

	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    sess.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(sess.out, "wrangle REPL (%d sample rows)\n", len(sess.sample))
	_, _ = fmt.Fprintln(sess.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(sess.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if sess.handle(cmd.Context(), line) {
			return nil
		}
	}
}

// replSession holds the recipe built so far and the sample it previews.
type replSession struct {
	cmdCtx *CommandContext
	out    io.Writer
	errOut io.Writer
	lines  []string
	sample []*row.Row
}

func newReplSession(cmd *cobra.Command, cmdCtx *CommandContext) (*replSession, error) {
	sess := &replSession{
		cmdCtx: cmdCtx,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
	if cmdCtx.Cfg.Source.DSN == "" {
		return sess, nil
	}

	src, err := cmdCtx.OpenSource(cmd)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	so := cmdCtx.Cfg.Sampling
	so.Limit = so.PreviewLimit()
	it, err := sampling.Apply[*row.Row](src, so.Options())
	if err != nil {
		return nil, err
	}
	rows, err := source.ReadBatch(cmd.Context(), it, so.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}
	sess.sample = rows
	return sess, nil
}

// handle processes one input line and reports whether the session ends.
func (s *replSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "//") {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line)
	}

	candidate := append(append([]string(nil), s.lines...), line)
	status := s.cmdCtx.Engine.Compile(strings.Join(candidate, "\n"))
	if !status.OK() {
		for _, err := range status.Errors {
			s.cmdCtx.Renderer.Error(err)
		}
		return false
	}
	s.lines = candidate
	s.preview(ctx)
	return false
}

func (s *replSession) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	r := s.cmdCtx.Renderer

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printReplHelp(s.out)

	case ".recipe":
		if len(s.lines) == 0 {
			_, _ = fmt.Fprintln(s.out, "(empty recipe)")
			break
		}
		for i, l := range s.lines {
			_, _ = fmt.Fprintf(s.out, "%3d  %s\n", i+1, l)
		}

	case ".undo":
		if len(s.lines) == 0 {
			r.Warning("nothing to undo")
			break
		}
		s.lines = s.lines[:len(s.lines)-1]
		s.preview(ctx)

	case ".reset":
		s.lines = nil
		r.Success("recipe cleared")

	case ".directives":
		for _, def := range s.cmdCtx.Engine.Directives() {
			_, _ = fmt.Fprintf(s.out, "  %-28s %s\n", def.Name, def.Description)
		}

	case ".preview":
		s.preview(ctx)

	case ".save":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .save <file>")
			break
		}
		if err := os.WriteFile(parts[1], []byte(s.recipe()+"\n"), 0o600); err != nil {
			r.Error(fmt.Errorf("failed to save recipe: %w", err))
			break
		}
		r.Success(fmt.Sprintf("saved %d directive(s) to %s", len(s.lines), parts[1]))

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (s *replSession) recipe() string {
	return strings.Join(s.lines, "\n")
}

// preview runs the current recipe over a copy of the sample.
func (s *replSession) preview(ctx context.Context) {
	if len(s.sample) == 0 {
		return
	}
	status := s.cmdCtx.Engine.Compile(s.recipe())
	if !status.OK() {
		return
	}

	rows := make([]*row.Row, len(s.sample))
	for i, rw := range s.sample {
		rows[i] = rw.Clone()
	}
	none := sampling.Options{Method: sampling.MethodNone}
	res, err := s.cmdCtx.Engine.Run(ctx, status.Pipeline, source.FromRows(rows), engine.RunOptions{Sampling: &none})
	if err != nil {
		s.cmdCtx.Renderer.Error(err)
		return
	}

	shown := res.Rows
	if len(shown) > replPreviewRows {
		shown = shown[:replPreviewRows]
	}
	if err := s.cmdCtx.Renderer.Rows(res.Columns(), shown); err != nil {
		s.cmdCtx.Renderer.Error(err)
	}
	if len(res.Skipped) > 0 {
		s.cmdCtx.Renderer.Warning(fmt.Sprintf("%d row(s) skipped", len(res.Skipped)))
	}
}

func (s *replSession) completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, def := range s.cmdCtx.Engine.Directives() {
		items = append(items, readline.PcItem(def.Name))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".recipe"),
		readline.PcItem(".undo"),
		readline.PcItem(".reset"),
		readline.PcItem(".directives"),
		readline.PcItem(".preview"),
		readline.PcItem(".save"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

func printReplHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .recipe         Show the recipe built so far
  .undo           Remove the last directive
  .reset          Remove all directives
  .directives     List available directives
  .preview        Preview the sample again
  .save <file>    Write the recipe to a file
  .quit / .exit   Exit the REPL

Tips:
  - Enter one directive per line, e.g. uppercase :name
  - Tab completion works for directive names
`
	_, _ = fmt.Fprintln(w, help)
}
