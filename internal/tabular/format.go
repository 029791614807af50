package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// Format selects the serialization of a written dataset. The zero value is
// not a valid format.
type Format int

const (
	CSV Format = iota + 1
	Parquet
)

var ErrWrongFormat = errors.New("wrong format")

// WrongFormatError reports a format outside the supported set.
type WrongFormatError struct {
	Value string
}

func (e *WrongFormatError) Error() string {
	return fmt.Sprintf("format %q is not supported, use csv or parquet", e.Value)
}

func (e *WrongFormatError) Is(target error) bool {
	return target == ErrWrongFormat
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "parquet":
		return Parquet, nil
	default:
		return 0, &WrongFormatError{Value: s}
	}
}

func (f Format) String() string {
	switch f {
	case CSV:
		return "csv"
	case Parquet:
		return "parquet"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}
