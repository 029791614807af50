package tabular

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the value type shared by every cell of a column.
type Kind uint8

const (
	String Kind = iota
	Int
	Float
	Bool
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Column is a named sequence of values. A nil value is a missing cell; any
// other value has the Go type of the column kind: string, int64, float64 or bool.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Dataset is an ordered set of equal-length columns. It is immutable once
// built; accessors hand out the underlying values and callers must not
// modify them.
type Dataset struct {
	columns []Column
	rows    int
}

// New validates columns and builds a dataset from them. Integer and float
// values of other widths are widened to int64 and float64.
func New(columns ...Column) (*Dataset, error) {
	d := &Dataset{columns: make([]Column, 0, len(columns))}
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d: name is required", i)
		}
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("column %q: duplicate name", col.Name)
		}
		seen[col.Name] = struct{}{}

		if i == 0 {
			d.rows = len(col.Values)
		} else if len(col.Values) != d.rows {
			return nil, fmt.Errorf("column %q: got %d values, want %d", col.Name, len(col.Values), d.rows)
		}

		values := make([]any, len(col.Values))
		for row, v := range col.Values {
			nv, err := normalizeValue(col.Kind, v)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col.Name, row, err)
			}
			values[row] = nv
		}
		d.columns = append(d.columns, Column{Name: col.Name, Kind: col.Kind, Values: values})
	}
	return d, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(columns ...Column) *Dataset {
	d, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dataset) NumRows() int {
	if d == nil {
		return 0
	}
	return d.rows
}

func (d *Dataset) NumColumns() int {
	if d == nil {
		return 0
	}
	return len(d.columns)
}

func (d *Dataset) Columns() []Column {
	if d == nil {
		return nil
	}
	return append([]Column(nil), d.columns...)
}

func (d *Dataset) Column(i int) Column {
	return d.columns[i]
}

func (d *Dataset) ColumnNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name
	}
	return names
}

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []any {
	row := make([]any, len(d.columns))
	for c, col := range d.columns {
		row[c] = col.Values[i]
	}
	return row
}

// Equal reports whether both datasets have the same columns, kinds and values
// in the same order. NaN compares equal to NaN.
func (d *Dataset) Equal(other *Dataset) bool {
	if d.NumRows() != other.NumRows() || d.NumColumns() != other.NumColumns() {
		return false
	}
	for i := 0; i < d.NumColumns(); i++ {
		a, b := d.columns[i], other.columns[i]
		if a.Name != b.Name || a.Kind != b.Kind {
			return false
		}
		for row := range a.Values {
			if !valueEqual(a.Values[row], b.Values[row]) {
				return false
			}
		}
	}
	return true
}

var errKindMismatch = errors.New("value does not match column kind")

func normalizeValue(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Int:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int8:
			return int64(n), nil
		}
	case Float:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		return nil, fmt.Errorf("unknown column kind %s", kind)
	}
	return nil, fmt.Errorf("%w: %T is not %s", errKindMismatch, v, kind)
}

func valueEqual(a, b any) bool {
	fa, okA := a.(float64)
	fb, okB := b.(float64)
	if okA && okB && math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return a == b
}
