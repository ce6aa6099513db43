// Package row provides the record abstraction that directives transform.
//
// A Row is an ordered list of named, typed values. Names are not required to
// be unique; lookup returns the first match.
package row

import (
	"fmt"
	"strings"
	"time"
)

// Type names the logical type of a column value.
type Type string

// Column types.
const (
	TypeNull    Type = "NULL"
	TypeString  Type = "STRING"
	TypeInt     Type = "INT"
	TypeFloat   Type = "FLOAT"
	TypeBool    Type = "BOOLEAN"
	TypeTime    Type = "TIMESTAMP"
	TypeBytes   Type = "BYTES"
	TypeUnknown Type = "UNKNOWN"
)

// TypeOf infers the column type of a Go value.
func TypeOf(v any) Type {
	switch v.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeTime
	case []byte:
		return TypeBytes
	default:
		return TypeUnknown
	}
}

// Column is one named value.
type Column struct {
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Value any    `json:"value"`
}

// Row is an ordered sequence of columns.
type Row struct {
	columns []Column
}

// New creates a row from columns.
func New(columns ...Column) *Row {
	cp := make([]Column, len(columns))
	copy(cp, columns)
	return &Row{columns: cp}
}

// Of creates a row from alternating name, value pairs. Types are inferred.
func Of(pairs ...any) *Row {
	r := &Row{}
	for i := 0; i+1 < len(pairs); i += 2 {
		name := fmt.Sprint(pairs[i])
		r.Add(name, TypeOf(pairs[i+1]), pairs[i+1])
	}
	return r
}

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.columns) }

// Find returns the index of the first column called name, or -1.
func (r *Row) Find(name string) int {
	for i, c := range r.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the value at index.
func (r *Row) Value(index int) any {
	return r.columns[index].Value
}

// Name returns the column name at index.
func (r *Row) Name(index int) string {
	return r.columns[index].Name
}

// Column returns the column at index.
func (r *Row) Column(index int) Column {
	return r.columns[index]
}

// Get returns the value of the first column called name.
func (r *Row) Get(name string) (any, bool) {
	i := r.Find(name)
	if i < 0 {
		return nil, false
	}
	return r.columns[i].Value, true
}

// Add appends a column.
func (r *Row) Add(name string, typ Type, value any) {
	r.columns = append(r.columns, Column{Name: name, Type: typ, Value: value})
}

// SetColumn renames the column at index.
func (r *Row) SetColumn(index int, name string) {
	r.columns[index].Name = name
}

// SetValue replaces the value at index and re-infers its type.
func (r *Row) SetValue(index int, value any) {
	r.columns[index].Value = value
	r.columns[index].Type = TypeOf(value)
}

// Set updates the first column called name, or appends it when absent.
func (r *Row) Set(name string, value any) {
	if i := r.Find(name); i >= 0 {
		r.SetValue(i, value)
		return
	}
	r.Add(name, TypeOf(value), value)
}

// Remove deletes the column at index.
func (r *Row) Remove(index int) {
	r.columns = append(r.columns[:index], r.columns[index+1:]...)
}

// Columns returns a copy of the columns.
func (r *Row) Columns() []Column {
	cp := make([]Column, len(r.columns))
	copy(cp, r.columns)
	return cp
}

// Names returns the column names in order.
func (r *Row) Names() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
	}
	return names
}

// Map returns the row as a name to value map. Earlier columns win.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for _, c := range r.columns {
		if _, ok := m[c.Name]; !ok {
			m[c.Name] = c.Value
		}
	}
	return m
}

// Clone returns a copy of the row. Values are shared.
func (r *Row) Clone() *Row {
	return New(r.columns...)
}

func (r *Row) String() string {
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = fmt.Sprintf("%s=%v", c.Name, c.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ColumnNotFoundError reports a lookup of a column a row does not have.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}
