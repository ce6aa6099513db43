package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/wrangle/pkg/grammar"
)

// File is a recipe stored as YAML:
//
//	name: clean-customers
//	description: Normalize customer names
//	directives:
//	  - rename :fname :first_name
//	  - titlecase :first_name
type File struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Directives  []string `yaml:"directives"`
}

// Text renders the directives as recipe text, one directive per line, so
// line N of the text is directive N of the file.
func (f *File) Text() string {
	lines := make([]string, len(f.Directives))
	for i, d := range f.Directives {
		lines[i] = flatten(d)
	}
	return strings.Join(lines, "\n")
}

// Validate checks that every entry holds exactly one directive and that no
// '//' comment would swallow later lines of the entry once they are joined.
// Entries with syntax errors are left to the compiler, which reports them
// against the entry's line.
func (f *File) Validate() error {
	for i, d := range f.Directives {
		entry := strings.TrimSpace(d)
		groups, errs := grammar.Parse(flatten(entry))
		if len(errs) > 0 {
			continue
		}
		if len(groups) != 1 {
			return fmt.Errorf("directive %d: entry must hold exactly one directive, found %d", i+1, len(groups))
		}
		rest := entry[groups[0].Pos.Offset+len(groups[0].Source):]
		if c := strings.Index(rest, "//"); c >= 0 && strings.Contains(rest[c:], "\n") {
			return fmt.Errorf("directive %d: '//' comment would hide the lines after it", i+1)
		}
	}
	return nil
}

func flatten(d string) string {
	return strings.ReplaceAll(strings.TrimSpace(d), "\n", " ")
}

// ParseYAML decodes a YAML recipe.
func ParseYAML(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recipe: %w", err)
	}
	return &f, nil
}

// Load reads a recipe file and returns its text. Files ending in .yaml or
// .yml are decoded as File; anything else is read as plain recipe text.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is provided by the user
	if err != nil {
		return "", fmt.Errorf("failed to read recipe %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := ParseYAML(data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		return f.Text(), nil
	default:
		return string(data), nil
	}
}
