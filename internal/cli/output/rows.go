package output

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/wrangle/pkg/row"
)

// Rows writes rows under columns. Columns missing from a row render empty.
func (r *Renderer) Rows(columns []string, rows []*row.Row) error {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		out := make([]map[string]any, 0, len(rows))
		for _, rw := range rows {
			out = append(out, rw.Map())
		}
		return r.JSON(out)
	}

	if len(rows) == 0 && mode == ModeTable {
		r.Println("(0 rows)")
		return nil
	}

	t := r.Table(columns...)
	for _, rw := range rows {
		values := make(table.Row, len(columns))
		for i, name := range columns {
			if v, ok := rw.Get(name); ok {
				values[i] = FormatValue(v)
			}
		}
		t.AppendRow(values)
	}

	switch mode {
	case ModeCSV:
		t.RenderCSV()
	case ModeMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
		r.Printf("(%d rows)\n", len(rows))
	}
	return nil
}

// Table returns a table writer with a header, mirrored to the result
// writer. The caller renders it.
func (r *Renderer) Table(header ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	if len(header) > 0 {
		h := make(table.Row, len(header))
		for i, name := range header {
			h[i] = name
		}
		t.AppendHeader(h)
	}
	return t
}

// FormatValue renders a column value as display text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
