// Package token defines the typed token values produced by the recipe grammar
// and consumed by the argument binder.
//
// Every token carries a Kind tag and a kind-specific value that is reachable
// through typed accessors. Tokens are immutable once produced.
package token

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the type of a token.
type Kind int

// Kind constants. The names mirror the directive usage vocabulary.
const (
	ColumnName Kind = iota // :name
	Text                   // 'quoted' or "quoted"
	Number                 // 12, -3.5, 1e10
	Boolean                // true | false
	Expression             // { ... } or label: { ... }
	List                   // [a, b, c]
	Properties             // prop: { key = value, ... }
	Identifier             // bare word
)

var kindNames = map[Kind]string{
	ColumnName: "COLUMN_NAME",
	Text:       "TEXT",
	Number:     "NUMBER",
	Boolean:    "BOOLEAN",
	Expression: "EXPRESSION",
	List:       "LIST",
	Properties: "PROPERTIES",
	Identifier: "IDENTIFIER",
}

// String returns the upper-case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// Short returns the lower-case placeholder used in usage strings.
func (k Kind) Short() string {
	switch k {
	case ColumnName:
		return "column"
	case Text:
		return "text"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Expression:
		return "expression"
	case List:
		return "list"
	case Properties:
		return "properties"
	case Identifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// Token is a single lexical unit of a directive invocation.
type Token struct {
	Kind  Kind
	Raw   string   // source text as written
	Pos   Position // where the token starts
	Label string   // label of a `label: { }` block, empty otherwise

	value any
}

// NewColumn creates a COLUMN_NAME token.
func NewColumn(name string, pos Position) Token {
	return Token{Kind: ColumnName, Raw: ":" + name, Pos: pos, value: name}
}

// NewIdentifier creates an IDENTIFIER token.
func NewIdentifier(word string, pos Position) Token {
	return Token{Kind: Identifier, Raw: word, Pos: pos, value: word}
}

// NewText creates a TEXT token from an already unquoted string.
func NewText(s, raw string, pos Position) Token {
	return Token{Kind: Text, Raw: raw, Pos: pos, value: s}
}

// NewNumber creates a NUMBER token from its literal text.
func NewNumber(raw string, pos Position) (Token, error) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Token{Kind: Number, Raw: raw, Pos: pos, value: i}, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Token{}, fmt.Errorf("invalid number %q", raw)
	}
	return Token{Kind: Number, Raw: raw, Pos: pos, value: f}, nil
}

// NewBoolean creates a BOOLEAN token.
func NewBoolean(b bool, raw string, pos Position) Token {
	return Token{Kind: Boolean, Raw: raw, Pos: pos, value: b}
}

// NewExpression creates an EXPRESSION token holding the opaque block payload.
func NewExpression(src, label, raw string, pos Position) Token {
	return Token{Kind: Expression, Raw: raw, Pos: pos, Label: label, value: src}
}

// NewList creates a LIST token.
func NewList(items []Token, raw string, pos Position) Token {
	cp := make([]Token, len(items))
	copy(cp, items)
	return Token{Kind: List, Raw: raw, Pos: pos, value: cp}
}

// NewProperties creates a PROPERTIES token.
func NewProperties(props map[string]Token, label, raw string, pos Position) Token {
	cp := make(map[string]Token, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return Token{Kind: Properties, Raw: raw, Pos: pos, Label: label, value: cp}
}

// WithKind returns a copy of t re-tagged as kind. The binder uses it to turn
// a bare IDENTIFIER into a COLUMN_NAME.
func (t Token) WithKind(kind Kind) Token {
	t.Kind = kind
	return t
}

// Value returns the kind-specific value.
func (t Token) Value() any {
	switch t.value.(type) {
	case []Token:
		return t.Items()
	case map[string]Token:
		return t.Properties()
	default:
		return t.value
	}
}

// String returns the textual value of scalar tokens: the column name, the
// unquoted text, the identifier, the expression payload, or the literal.
func (t Token) String() string {
	switch v := t.value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64, float64:
		return t.Raw
	default:
		return t.Raw
	}
}

// Bool returns the value of a BOOLEAN token.
func (t Token) Bool() bool {
	b, _ := t.value.(bool)
	return b
}

// Int returns the integer value of a NUMBER token. ok is false for
// floating-point literals.
func (t Token) Int() (int64, bool) {
	i, ok := t.value.(int64)
	return i, ok
}

// Float returns the value of a NUMBER token as float64.
func (t Token) Float() float64 {
	switch v := t.value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

// Items returns a copy of the elements of a LIST token.
func (t Token) Items() []Token {
	items, _ := t.value.([]Token)
	cp := make([]Token, len(items))
	copy(cp, items)
	return cp
}

// Properties returns a copy of the entries of a PROPERTIES token.
func (t Token) Properties() map[string]Token {
	props, _ := t.value.(map[string]Token)
	cp := make(map[string]Token, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}

// Native converts the token into a plain Go value: string, int64, float64,
// bool, []any or map[string]any.
func (t Token) Native() any {
	switch t.Kind {
	case List:
		items := t.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = it.Native()
		}
		return out
	case Properties:
		props := t.Properties()
		out := make(map[string]any, len(props))
		for k, v := range props {
			out[k] = v.Native()
		}
		return out
	default:
		return t.value
	}
}

// Describe renders the token for diagnostics, e.g. COLUMN_NAME(:fname).
func (t Token) Describe() string {
	return fmt.Sprintf("%s(%s)", t.Kind, t.Raw)
}

// Group is the ordered token sequence of one directive invocation.
type Group struct {
	Directive string   // directive name
	Tokens    []Token  // arguments, in source order
	Line      int      // 1-based line of the directive name
	Pos       Position // position of the directive name
	Source    string   // raw directive text, without terminator
}

// Len returns the number of argument tokens.
func (g Group) Len() int { return len(g.Tokens) }

// Kinds returns the kinds of the argument tokens in order.
func (g Group) Kinds() []Kind {
	kinds := make([]Kind, len(g.Tokens))
	for i, t := range g.Tokens {
		kinds[i] = t.Kind
	}
	return kinds
}

// String renders the group as `name KIND(raw) ...`.
func (g Group) String() string {
	parts := make([]string, 0, len(g.Tokens)+1)
	parts = append(parts, g.Directive)
	for _, t := range g.Tokens {
		parts = append(parts, t.Describe())
	}
	return strings.Join(parts, " ")
}

// SortedKeys returns the keys of a PROPERTIES token in lexical order.
func (t Token) SortedKeys() []string {
	props, _ := t.value.(map[string]Token)
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
