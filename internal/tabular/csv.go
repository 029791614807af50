package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const (
	DefaultEncoding = "utf-8"
	DefaultComma    = ','
)

var ErrNoHeader = errors.New("csv has no header row")

// CSVOptions controls how delimited text is decoded.
type CSVOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Encoding is a WHATWG encoding label such as "utf-8" or "latin1".
	// Empty means utf-8.
	Encoding string
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.Comma == 0 {
		o.Comma = DefaultComma
	}
	if strings.TrimSpace(o.Encoding) == "" {
		o.Encoding = DefaultEncoding
	}
	return o
}

// EncodeCSV renders d as comma-delimited UTF-8 text: a header row with the
// column names followed by one "\n"-terminated line per row. Missing cells
// are written as empty fields.
func EncodeCSV(d *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = DefaultComma

	if err := w.Write(d.ColumnNames()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, d.NumColumns())
	for row := 0; row < d.NumRows(); row++ {
		for c, col := range d.columns {
			record[c] = formatCell(col.Values[row])
		}
		if len(record) == 1 && record[0] == "" {
			// A bare empty line is skipped by CSV readers, so quote the lone
			// empty field to keep the row.
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", row, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses delimited text produced by EncodeCSV, or any CSV with a
// header row, back into a dataset. Each column gets the narrowest kind that
// fits all of its non-empty cells, tried in the order int, float, bool; any
// other column is a string column. Empty cells become missing values.
func DecodeCSV(data []byte, opts CSVOptions) (*Dataset, error) {
	opts = opts.withDefaults()

	var src io.Reader = bytes.NewReader(data)
	if !isUTF8Label(opts.Encoding) {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", opts.Encoding, err)
		}
		src = transform.NewReader(src, enc.NewDecoder())
	}

	r := csv.NewReader(src)
	r.Comma = opts.Comma

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		for c, field := range record {
			cells[c] = append(cells[c], field)
		}
	}

	columns := make([]Column, len(header))
	for c, name := range header {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", c)
		}
		columns[c] = parseColumn(name, cells[c])
	}
	return New(columns...)
}

func isUTF8Label(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	default:
		return false
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat keeps a decimal point or exponent in every finite value so the
// column is read back as float rather than int.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// parseColumn infers the column kind. A column whose cells are all empty is
// a float column of missing values; a column with no rows is a string column.
func parseColumn(name string, fields []string) Column {
	if allEmpty(fields) {
		kind := Float
		if len(fields) == 0 {
			kind = String
		}
		return Column{Name: name, Kind: kind, Values: make([]any, len(fields))}
	}
	for _, kind := range []Kind{Int, Float, Bool} {
		if values, ok := parseFields(kind, fields); ok {
			return Column{Name: name, Kind: kind, Values: values}
		}
	}
	values, _ := parseFields(String, fields)
	return Column{Name: name, Kind: String, Values: values}
}

func allEmpty(fields []string) bool {
	for _, field := range fields {
		if field != "" {
			return false
		}
	}
	return true
}

// parseFields converts every non-empty field to kind and fails on the first
// one that does not parse.
func parseFields(kind Kind, fields []string) ([]any, bool) {
	values := make([]any, len(fields))
	for i, field := range fields {
		if field == "" {
			continue
		}
		v, ok := parseField(kind, field)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func parseField(kind Kind, field string) (any, bool) {
	switch kind {
	case Int:
		n, err := strconv.ParseInt(field, 10, 64)
		return n, err == nil
	case Float:
		f, err := strconv.ParseFloat(field, 64)
		return f, err == nil
	case Bool:
		switch field {
		case "True", "true", "TRUE":
			return true, true
		case "False", "false", "FALSE":
			return false, true
		}
		return nil, false
	default:
		return field, true
	}
}
