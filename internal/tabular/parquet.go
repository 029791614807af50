package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

const readBatchSize = 128

var errNoColumns = errors.New("dataset has no columns")

// EncodeParquet renders d as a single Parquet file. The file schema lists the
// columns in dataset order and every column is an optional leaf so missing
// cells survive; no index column is written.
func EncodeParquet(d *Dataset) ([]byte, error) {
	schema, err := schemaOf(d)
	if err != nil {
		return nil, err
	}

	rows := make([]parquet.Row, d.NumRows())
	for r := range rows {
		row := make(parquet.Row, d.NumColumns())
		for leaf, col := range d.columns {
			row[leaf] = parquetValue(col.Values[r], leaf)
		}
		rows[r] = row
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema, parquet.Compression(&parquet.Snappy))
	if _, err := w.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// schemaOf builds the file schema from a struct type whose fields follow the
// dataset columns. parquet.Group would sort the columns by name.
func schemaOf(d *Dataset) (*parquet.Schema, error) {
	if d.NumColumns() == 0 {
		return nil, errNoColumns
	}
	fields := make([]reflect.StructField, d.NumColumns())
	for i, col := range d.columns {
		if col.Name == "-" || strings.Contains(col.Name, ",") {
			return nil, fmt.Errorf("column %q: name cannot be stored in parquet", col.Name)
		}
		goType, err := goTypeOf(col.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		fields[i] = reflect.StructField{
			Name: "C" + strconv.Itoa(i),
			Type: goType,
			Tag:  reflect.StructTag(`parquet:` + strconv.Quote(col.Name+",optional")),
		}
	}
	model := reflect.New(reflect.StructOf(fields)).Interface()
	return parquet.NewSchema("dataset", parquet.SchemaOf(model)), nil
}

// DecodeParquet reads a flat Parquet file into a dataset with the columns in
// file schema order.
func DecodeParquet(data []byte) (*Dataset, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	fields := f.Schema().Fields()
	columns := make([]Column, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, fmt.Errorf("column %q: nested columns are not supported", field.Name())
		}
		kind, err := kindOf(field.Type().Kind())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name(), err)
		}
		columns[i] = Column{Name: field.Name(), Kind: kind, Values: make([]any, 0, f.NumRows())}
	}

	buf := make([]parquet.Row, readBatchSize)
	for _, rg := range f.RowGroups() {
		if err := readRowGroup(rg, buf, columns); err != nil {
			return nil, err
		}
	}
	return New(columns...)
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, columns []Column) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, v := range row {
				c := v.Column()
				columns[c].Values = append(columns[c].Values, cellOf(v))
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

func goTypeOf(kind Kind) (reflect.Type, error) {
	switch kind {
	case String:
		return reflect.TypeOf(""), nil
	case Int:
		return reflect.TypeOf(int64(0)), nil
	case Float:
		return reflect.TypeOf(float64(0)), nil
	case Bool:
		return reflect.TypeOf(false), nil
	default:
		return nil, fmt.Errorf("unsupported column kind %s", kind)
	}
}

func parquetValue(v any, leaf int) parquet.Value {
	switch x := v.(type) {
	case string:
		return parquet.ByteArrayValue([]byte(x)).Level(0, 1, leaf)
	case int64:
		return parquet.Int64Value(x).Level(0, 1, leaf)
	case float64:
		return parquet.DoubleValue(x).Level(0, 1, leaf)
	case bool:
		return parquet.BooleanValue(x).Level(0, 1, leaf)
	default:
		return parquet.NullValue().Level(0, 0, leaf)
	}
}

func kindOf(k parquet.Kind) (Kind, error) {
	switch k {
	case parquet.ByteArray:
		return String, nil
	case parquet.Int32, parquet.Int64:
		return Int, nil
	case parquet.Float, parquet.Double:
		return Float, nil
	case parquet.Boolean:
		return Bool, nil
	default:
		return 0, fmt.Errorf("unsupported parquet type %s", k)
	}
}

func cellOf(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.ByteArray:
		return string(v.ByteArray())
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.Boolean:
		return v.Boolean()
	default:
		return nil
	}
}
