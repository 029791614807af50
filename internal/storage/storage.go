package storage

import "errors"

var (
	// ErrNotFound is returned by GetObject when the key does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrStoreUnavailable matches transport, auth and permission failures.
	ErrStoreUnavailable = errors.New("object store unavailable")
	ErrInvalidKey       = errors.New("invalid object key")
)

// ObjectStore is the bucket boundary. Keys are slash separated and relative
// to the store's configured prefix.
type ObjectStore interface {
	PutObject(key string, data []byte) error
	GetObject(key string) ([]byte, error)
	DeleteObject(key string) error
	// ListKeys returns the sorted keys that start with prefix.
	ListKeys(prefix string) ([]string, error)
}

// OpError wraps a backend failure with the operation that caused it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func opError(op string, err error) error {
	return &OpError{Op: op, Err: err}
}
