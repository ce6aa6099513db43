package builtin

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/wrangle/internal/testutil"
	"github.com/leapstack-labs/wrangle/pkg/directive"
	"github.com/leapstack-labs/wrangle/pkg/pipeline"
	"github.com/leapstack-labs/wrangle/pkg/recipe"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
)

func compile(t *testing.T, directives ...string) *pipeline.Pipeline {
	t.Helper()
	reg := directive.NewRegistry()
	for _, def := range Definitions() {
		reg.Register(def)
	}
	status := recipe.NewCompiler(recipe.WithRegistry(reg)).Compile(strings.Join(directives, "\n"))
	require.True(t, status.OK(), "compile failed: %v", status.Err())
	return status.Pipeline
}

func execute(t *testing.T, rows []*row.Row, directives ...string) ([]*row.Row, error) {
	t.Helper()
	return pipeline.NewExecutor(testutil.NewTestLogger(t)).Execute(compile(t, directives...), rows)
}

func mustExecute(t *testing.T, rows []*row.Row, directives ...string) []*row.Row {
	t.Helper()
	out, err := execute(t, rows, directives...)
	require.NoError(t, err)
	return out
}

func TestDefinitions_Registered(t *testing.T) {
	names := make([]string, 0)
	for _, def := range Definitions() {
		names = append(names, def.Name)
		got, ok := directive.Get(def.Name)
		require.True(t, ok, "%s is registered by init", def.Name)
		assert.Equal(t, def.Name, got.Usage.Directive())
		assert.NotEmpty(t, got.Description)
	}
	assert.Contains(t, names, "rename")
	assert.Contains(t, names, "text-distance")
	assert.Contains(t, names, "parse-as-csv")
}

func TestRename(t *testing.T) {
	out := mustExecute(t, []*row.Row{row.Of("fname", "ada", "age", 36)}, "rename :fname :first_name")
	require.Len(t, out, 1)
	assert.Equal(t, []string{"first_name", "age"}, out[0].Names())

	_, err := execute(t, []*row.Row{row.Of("a", 1)}, "rename :missing :b")
	var se *step.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "missing", se.Column)
	assert.Equal(t, 0, se.Row)

	_, err = execute(t, []*row.Row{row.Of("a", 1, "b", 2)}, "rename :a :b")
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "Column 'b' already exists.")
}

func TestSwap(t *testing.T) {
	out := mustExecute(t, []*row.Row{row.Of("a", "1", "b", "2")}, "swap :a :b")
	require.Len(t, out, 1)
	assert.Equal(t, []string{"b", "a"}, out[0].Names())
	v, _ := out[0].Get("a")
	assert.Equal(t, "2", v)

	tests := []struct {
		name string
		row  *row.Row
		msg  string
	}{
		{"source missing", row.Of("b", "2"), "Source column not found."},
		{"destination missing", row.Of("a", "1"), "Destination column not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, []*row.Row{tt.row}, "swap :a :b")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMerge(t *testing.T) {
	rows := []*row.Row{
		row.Of("first", "Joltie", "last", "Root"),
		row.Of("first", "Joltie", "last", 7),
		row.Of("first", "Joltie"),
	}
	out := mustExecute(t, rows, "merge :first :last :name ' '")
	require.Len(t, out, 3)

	v, ok := out[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "Joltie Root", v)
	assert.Equal(t, row.TypeString, out[0].Column(2).Type)

	v, _ = out[1].Get("name")
	assert.Equal(t, "Joltie 7", v)

	assert.Equal(t, 1, out[2].Len(), "rows missing a source column are unchanged")
}

func TestCopy(t *testing.T) {
	out := mustExecute(t, []*row.Row{row.Of("a", 1)}, "copy :a :b")
	assert.Equal(t, []string{"a", "b"}, out[0].Names())
	assert.Equal(t, row.TypeInt, out[0].Column(1).Type)

	_, err := execute(t, []*row.Row{row.Of("a", 1, "b", 2)}, "copy :a :b")
	require.Error(t, err)

	out = mustExecute(t, []*row.Row{row.Of("a", 1, "b", 2)}, "copy :a :b true")
	v, _ := out[0].Get("b")
	assert.Equal(t, 1, v)
}

func TestDrop(t *testing.T) {
	out := mustExecute(t, []*row.Row{row.Of("a", 1, "b", 2, "c", 3, "a", 4)}, "drop [:a, c, 'zzz']")
	assert.Equal(t, []string{"b"}, out[0].Names())

	out = mustExecute(t, []*row.Row{row.Of("a", 1, "b", 2)}, "drop :a")
	assert.Equal(t, []string{"b"}, out[0].Names())
}

func TestTextDistance(t *testing.T) {
	text := "This is an example for distance measure."
	rows := []*row.Row{
		row.Of("string1", text, "string2", "This test is made of works that are similar. This is an example for distance measure."),
		row.Of("string1", text, "string2", ""),
		row.Of("string1", text, "string2", int64(1)),
		row.Of("string1", text),
	}

	out := mustExecute(t, rows,
		"text-distance cosine string1 string2 cosine",
		"text-distance euclidean string1 string2 euclidean",
		"text-distance block-distance string1 string2 block_distance",
		"text-distance identity string1 string2 identity",
		"text-distance block string1 string2 block",
		"text-distance dice string1 string2 dice",
		"text-distance jaro string1 string2 jaro",
		"text-distance longest-common-subsequence string1 string2 lcs1",
		"text-distance longest-common-substring string1 string2 lcs2",
		"text-distance overlap-cofficient string1 string2 oc",
		"text-distance damerau-levenshtein string1 string2 dl",
		"text-distance simon-white string1 string2 sw",
		"text-distance levenshtein string1 string2 levenshtein",
	)

	require.Len(t, out, 4)
	assert.Equal(t, 15, out[0].Len())
	assert.Equal(t, 15, out[1].Len())
	assert.Equal(t, 15, out[2].Len())
	assert.Equal(t, 14, out[3].Len())

	for _, name := range []string{"cosine", "jaro", "levenshtein"} {
		v, _ := out[0].Get(name)
		score, ok := v.(float64)
		require.True(t, ok, "%s is a float", name)
		assert.Greater(t, score, 0.0, name)
		assert.LessOrEqual(t, score, 1.0, name)

		v, _ = out[2].Get(name)
		assert.Equal(t, 0.0, v, "non-string input scores 0 for %s", name)
	}
}

func TestTextDistance_UnknownMethod(t *testing.T) {
	reg := directive.NewRegistry()
	for _, def := range Definitions() {
		reg.Register(def)
	}
	status := recipe.NewCompiler(recipe.WithRegistry(reg)).Compile("text-distance hamming :a :b :c")
	require.False(t, status.OK())
	var ce *recipe.ConstructError
	require.ErrorAs(t, status.Err(), &ce)
	assert.Contains(t, ce.Error(), `unknown distance method "hamming"`)
}

func TestParseAsCSV(t *testing.T) {
	tests := []struct {
		name      string
		directive string
		rows      []*row.Row
		want      [][]string
	}{
		{
			name:      "default delimiter",
			directive: "parse-as-csv :body",
			rows:      []*row.Row{row.Of("body", `a,"b,c",d`)},
			want:      [][]string{{"body", "body_1", "body_2", "body_3"}},
		},
		{
			name:      "custom delimiter",
			directive: "parse-as-csv :body '|'",
			rows:      []*row.Row{row.Of("body", "x|y")},
			want:      [][]string{{"body", "body_1", "body_2"}},
		},
		{
			name:      "skip empty",
			directive: "parse-as-csv :body ',' true",
			rows:      []*row.Row{row.Of("body", ""), row.Of("body", "1,2")},
			want:      [][]string{{"body", "body_1", "body_2"}},
		},
		{
			name:      "keep empty",
			directive: "parse-as-csv :body ',' false",
			rows:      []*row.Row{row.Of("body", "  ")},
			want:      [][]string{{"body"}},
		},
		{
			name:      "condition",
			directive: "parse-as-csv :body ',' exp: { type == '002' }",
			rows: []*row.Row{
				row.Of("type", "001", "body", "a,b"),
				row.Of("type", "002", "body", "a,b"),
			},
			want: [][]string{{"type", "body"}, {"type", "body", "body_1", "body_2"}},
		},
		{
			name:      "options",
			directive: "parse-as-csv :body ';' prop: { prefix = 'f', trim = true }",
			rows:      []*row.Row{row.Of("body", " a ; b")},
			want:      [][]string{{"body", "f_1", "f_2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustExecute(t, tt.rows, tt.directive)
			require.Len(t, out, len(tt.want))
			for i, names := range tt.want {
				assert.Equal(t, names, out[i].Names(), "row %d", i)
			}
		})
	}

	out := mustExecute(t, []*row.Row{row.Of("body", " a ; b")}, "parse-as-csv :body ';' prop: { prefix = 'f', trim = true }")
	v, _ := out[0].Get("f_2")
	assert.Equal(t, "b", v)
}

func TestParseAsCSV_SkipsBadRows(t *testing.T) {
	rows := []*row.Row{row.Of("body", 12), row.Of("body", "a,b"), row.Of("other", "x")}
	report, err := pipeline.NewExecutor(nil).ExecuteReport(compile(t, "parse-as-csv :body"), rows)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 0, report.Skipped[0].Row)
	assert.Equal(t, 2, report.Skipped[1].Row)
	assert.Equal(t, 1, report.Rows[0].Len(), "skipped rows pass through unchanged")
}

func TestParseAsCSV_InvalidArguments(t *testing.T) {
	reg := directive.NewRegistry()
	for _, def := range Definitions() {
		reg.Register(def)
	}
	c := recipe.NewCompiler(recipe.WithRegistry(reg))

	for _, text := range []string{
		"parse-as-csv :body ',,'",
		"parse-as-csv :body prop: { unknown = 1 }",
		"parse-as-csv :body prop: { comment = '##' }",
	} {
		t.Run(text, func(t *testing.T) {
			status := c.Compile(text)
			require.False(t, status.OK())
			var ce *recipe.ConstructError
			assert.ErrorAs(t, status.Err(), &ce)
		})
	}
}

func TestFilters(t *testing.T) {
	rows := func() []*row.Row {
		return []*row.Row{row.Of("age", 20), row.Of("age", 40), row.Of("age", 60)}
	}

	out := mustExecute(t, rows(), "filter-row-if-true { age > 30 }")
	require.Len(t, out, 1)
	v, _ := out[0].Get("age")
	assert.Equal(t, 20, v)

	out = mustExecute(t, rows(), "filter-row-if-false exp: { age > 30 }")
	assert.Len(t, out, 2)

	_, err := execute(t, rows(), "filter-row-if-true { missing > 1 }")
	var se *step.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Info.Line)
}

func TestSetColumn(t *testing.T) {
	out := mustExecute(t, []*row.Row{row.Of("price", 2.5, "qty", 4)},
		"set-column :total { price * qty }",
		"set-column :qty { qty + 1 }",
	)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"price", "qty", "total"}, out[0].Names())
	total, _ := out[0].Get("total")
	assert.InDelta(t, 10.0, total, 1e-9)
	qty, _ := out[0].Get("qty")
	assert.EqualValues(t, 5, qty)

	_, err := execute(t, []*row.Row{row.Of("a", 1)}, "set-column :b { a / 0 }")
	var se *step.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Column)
}

func TestStringDirectives(t *testing.T) {
	tests := []struct {
		directive string
		in        any
		want      any
	}{
		{"uppercase :s", "héllo", "HÉLLO"},
		{"lowercase :s", "MiXeD", "mixed"},
		{"titlecase :s", "the quick fox", "The Quick Fox"},
		{"trim :s", "  padded \t", "padded"},
		{"remove-accents :s", "Crème Brûlée", "Creme Brulee"},
		{"uppercase :s", 42, 42},
		{"fill-null-or-empty :s 'n/a'", "", "n/a"},
		{"fill-null-or-empty :s 'n/a'", nil, "n/a"},
		{"fill-null-or-empty :s 'n/a'", "set", "set"},
	}

	for _, tt := range tests {
		t.Run(tt.directive, func(t *testing.T) {
			out := mustExecute(t, []*row.Row{row.Of("s", tt.in)}, tt.directive)
			require.Len(t, out, 1)
			v, _ := out[0].Get("s")
			assert.Equal(t, tt.want, v)
		})
	}

	out := mustExecute(t, []*row.Row{row.Of("other", "x")}, "uppercase :s", "fill-null-or-empty :s 'y'")
	assert.Equal(t, []string{"other"}, out[0].Names(), "missing columns are left alone")
}
