package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/wrangle/internal/cli/output"
	"github.com/leapstack-labs/wrangle/pkg/directive"
)

// DirectiveOutput is the JSON form of a directive.
type DirectiveOutput struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Policy      string        `json:"policy"`
	Params      []ParamOutput `json:"params,omitempty"`
}

// ParamOutput is the JSON form of a directive parameter.
type ParamOutput struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Optional bool   `json:"optional"`
}

// NewDirectivesCommand creates the directives command.
func NewDirectivesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "directives [name]",
		Aliases: []string{"ls"},
		Short:   "List available directives",
		Long: `List the directives recipes can use, or show the parameters of one.

Output adapts to environment:
  - Terminal: Table
  - Piped/Scripted: JSON`,
		Example: `  # List all directives
  wrangle directives

  # Show parameters of one directive
  wrangle directives parse-as-csv`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var names []string
			for _, def := range directive.List() {
				names = append(names, def.Name)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if len(args) == 1 {
				return showDirective(cmdCtx.Renderer, args[0])
			}
			return listDirectives(cmdCtx.Renderer, cmdCtx.Engine.Directives())
		},
	}
}

func toDirectiveOutput(def directive.Definition) DirectiveOutput {
	out := DirectiveOutput{
		Name:        def.Name,
		Description: def.Description,
		Usage:       def.Usage.String(),
		Policy:      def.Policy.String(),
	}
	for _, p := range def.Usage.Params() {
		out.Params = append(out.Params, ParamOutput{Name: p.Name, Kind: p.Kind.String(), Optional: p.Optional})
	}
	return out
}

func listDirectives(r *output.Renderer, defs []directive.Definition) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]DirectiveOutput, 0, len(defs))
		for _, def := range defs {
			out = append(out, toDirectiveOutput(def))
		}
		return r.JSON(out)
	}

	t := r.Table("Directive", "Usage", "On failure", "Description")
	for _, def := range defs {
		t.AppendRow([]any{def.Name, def.Usage.String(), def.Policy.String(), def.Description})
	}
	switch r.EffectiveMode() {
	case output.ModeCSV:
		t.RenderCSV()
	case output.ModeMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

func showDirective(r *output.Renderer, name string) error {
	def, ok := directive.Get(name)
	if !ok {
		return fmt.Errorf("unknown directive %q", name)
	}
	out := toDirectiveOutput(def)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	styles := r.Styles()
	r.Println(styles.Header1.Render(out.Name))
	r.Println(out.Description)
	r.Println("")
	r.Println(styles.Bold.Render("Usage"))
	r.Println("  " + styles.Code.Render(out.Usage))
	r.Println("")
	r.Println(styles.Bold.Render("Parameters"))
	for _, p := range out.Params {
		opt := ""
		if p.Optional {
			opt = styles.Muted.Render(" (optional)")
		}
		r.Printf("  %-14s %s%s\n", p.Name, p.Kind, opt)
	}
	r.Println("")
	r.Println(styles.Muted.Render("On failure: " + out.Policy))
	return nil
}
