// Package output renders command results for terminals and scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how results are written.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto" // table on a terminal, JSON otherwise
	ModeTable    Mode = "table"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "markdown"
)

// Renderer writes results and messages in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, IsTTY(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
// Styles are only applied on a terminal.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		isTTY:  isTTY,
		mode:   mode,
		styles: NewStyles(lr),
	}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeTable
	}
	return ModeJSON
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the result writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the message writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to the result writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the result writer.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Success.Render("✓ "+msg))
}

// Warning writes a warning message.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error writes an error message.
func (r *Renderer) Error(err error) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+err.Error()))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
