// Package connector reads tabular files from an object store and writes
// datasets back in a chosen format.
package connector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"xetra/internal/storage"
	"xetra/internal/tabular"
)

// Outcome reports what a Write call did.
type Outcome int

const (
	Failed Outcome = iota
	Written
	// Skipped means the dataset had no rows and nothing was stored.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

var ErrInvalidKey = errors.New("object key is required")

type Options struct {
	// Endpoint and Bucket only label log records.
	Endpoint string
	Bucket   string
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Connector is safe for concurrent use when its store is.
type Connector struct {
	store    storage.ObjectStore
	log      zerolog.Logger
	endpoint string
	bucket   string
}

func New(store storage.ObjectStore, opts Options) *Connector {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Connector{
		store:    store,
		log:      log,
		endpoint: opts.Endpoint,
		bucket:   opts.Bucket,
	}
}

// Write encodes ds in the given format and stores it under key, replacing
// any existing object. An empty dataset is not stored and yields Skipped.
// Each call emits exactly one log record.
func (c *Connector) Write(ds *tabular.Dataset, key string, format tabular.Format) (Outcome, error) {
	return c.write(ds, key, format, format.String())
}

// WriteAs is Write with the format given by name, as it arrives from
// configuration or flags.
func (c *Connector) WriteAs(ds *tabular.Dataset, key, format string) (Outcome, error) {
	f, _ := tabular.ParseFormat(format)
	return c.write(ds, key, f, format)
}

func (c *Connector) write(ds *tabular.Dataset, key string, format tabular.Format, name string) (Outcome, error) {
	if strings.TrimSpace(key) == "" {
		c.log.Error().Str("format", name).Msg("refusing to write without a key")
		return Failed, ErrInvalidKey
	}
	if ds.NumRows() == 0 {
		c.log.Info().Str("key", key).Msg("dataset is empty, nothing to write")
		return Skipped, nil
	}

	var encode func(*tabular.Dataset) ([]byte, error)
	switch format {
	case tabular.CSV:
		encode = tabular.EncodeCSV
	case tabular.Parquet:
		encode = tabular.EncodeParquet
	default:
		c.log.Error().Str("key", key).Str("format", name).Msg("unsupported output format")
		return Failed, &tabular.WrongFormatError{Value: name}
	}

	c.log.Info().
		Str("endpoint", c.endpoint).
		Str("bucket", c.bucket).
		Str("key", key).
		Str("format", name).
		Int("rows", ds.NumRows()).
		Msg("writing file")

	payload, err := encode(ds)
	if err != nil {
		return Failed, fmt.Errorf("encode %s: %w", format, err)
	}
	if err := c.store.PutObject(key, payload); err != nil {
		return Failed, err
	}
	return Written, nil
}

// ListFilesInPrefix returns the sorted keys starting with prefix.
func (c *Connector) ListFilesInPrefix(prefix string) ([]string, error) {
	return c.store.ListKeys(prefix)
}

type ReadOption func(*tabular.CSVOptions)

// WithEncoding sets the character encoding of the stored text, e.g. "latin1".
func WithEncoding(name string) ReadOption {
	return func(o *tabular.CSVOptions) { o.Encoding = name }
}

func WithSeparator(sep rune) ReadOption {
	return func(o *tabular.CSVOptions) { o.Comma = sep }
}

// ReadCSV fetches key and parses it as delimited text with a header row.
// Store errors are returned unchanged.
func (c *Connector) ReadCSV(key string, opts ...ReadOption) (*tabular.Dataset, error) {
	var csvOpts tabular.CSVOptions
	for _, opt := range opts {
		opt(&csvOpts)
	}

	c.log.Info().
		Str("endpoint", c.endpoint).
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("reading file")

	data, err := c.store.GetObject(key)
	if err != nil {
		return nil, err
	}
	ds, err := tabular.DecodeCSV(data, csvOpts)
	if err != nil {
		return nil, fmt.Errorf("decode csv %q: %w", key, err)
	}
	return ds, nil
}
