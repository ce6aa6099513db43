package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{ColumnName, "COLUMN_NAME"},
		{Text, "TEXT"},
		{Number, "NUMBER"},
		{Boolean, "BOOLEAN"},
		{Expression, "EXPRESSION"},
		{List, "LIST"},
		{Properties, "PROPERTIES"},
		{Identifier, "IDENTIFIER"},
		{Kind(42), "KIND(42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestNewNumber(t *testing.T) {
	tok, err := NewNumber("42", Position{Line: 1, Column: 1})
	require.NoError(t, err)
	i, ok := tok.Int()
	assert.True(t, ok, "integer literal should report ok")
	assert.Equal(t, int64(42), i)
	assert.Equal(t, 42.0, tok.Float())

	tok, err = NewNumber("-3.5", Position{Line: 1, Column: 1})
	require.NoError(t, err)
	_, ok = tok.Int()
	assert.False(t, ok, "float literal is not an integer")
	assert.Equal(t, -3.5, tok.Float())
	assert.Equal(t, "-3.5", tok.String())

	_, err = NewNumber("1.2.3", Position{})
	assert.Error(t, err)
}

func TestToken_Immutable(t *testing.T) {
	items := []Token{NewIdentifier("a", Position{}), NewIdentifier("b", Position{})}
	list := NewList(items, "[a, b]", Position{})

	items[0] = NewIdentifier("changed", Position{})
	assert.Equal(t, "a", list.Items()[0].String(), "list must not alias its input")

	got := list.Items()
	got[1] = NewIdentifier("changed", Position{})
	assert.Equal(t, "b", list.Items()[1].String(), "Items must return a copy")

	props := map[string]Token{"k": NewText("v", "'v'", Position{})}
	p := NewProperties(props, "prop", "prop: { k = 'v' }", Position{})
	delete(props, "k")
	assert.Len(t, p.Properties(), 1)
}

func TestToken_Native(t *testing.T) {
	n, err := NewNumber("7", Position{})
	require.NoError(t, err)
	list := NewList([]Token{
		NewText("x", "'x'", Position{}),
		n,
		NewBoolean(true, "true", Position{}),
	}, "['x', 7, true]", Position{})

	assert.Equal(t, []any{"x", int64(7), true}, list.Native())

	props := NewProperties(map[string]Token{
		"quote": NewText(`"`, `'"'`, Position{}),
		"trim":  NewBoolean(true, "true", Position{}),
	}, "prop", "", Position{})
	assert.Equal(t, map[string]any{"quote": `"`, "trim": true}, props.Native())
	assert.Equal(t, []string{"quote", "trim"}, props.SortedKeys())
}

func TestToken_WithKind(t *testing.T) {
	id := NewIdentifier("string1", Position{Line: 2, Column: 5})
	col := id.WithKind(ColumnName)

	assert.Equal(t, Identifier, id.Kind, "original token is unchanged")
	assert.Equal(t, ColumnName, col.Kind)
	assert.Equal(t, "string1", col.String())
	assert.Equal(t, id.Pos, col.Pos)
}

func TestGroup_String(t *testing.T) {
	g := Group{
		Directive: "rename",
		Tokens: []Token{
			NewColumn("fname", Position{Line: 1, Column: 8}),
			NewColumn("lname", Position{Line: 1, Column: 15}),
		},
		Line: 1,
	}

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []Kind{ColumnName, ColumnName}, g.Kinds())
	assert.Equal(t, "rename COLUMN_NAME(:fname) COLUMN_NAME(:lname)", g.String())
}
