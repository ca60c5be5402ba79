package store

import (
	"context"
	"errors"
	"fmt"
)

// Backend is the single backing medium of a MemoryStore. It moves persisted
// documents as bytes; encoding and validation happen in the store.
type Backend interface {
	// Read returns the document for (category, key). found is false when
	// the pair is absent; that is not an error.
	Read(ctx context.Context, category, key string) (raw []byte, found bool, err error)

	// Write creates or fully replaces the document for (category, key).
	Write(ctx context.Context, category, key string, raw []byte) error

	// Remove deletes the document. Removing an absent pair succeeds.
	Remove(ctx context.Context, category, key string) error

	// Keys lists the keys present in category, in no particular order.
	Keys(ctx context.Context, category string) ([]string, error)

	// Categories lists every category holding at least one document.
	Categories(ctx context.Context) ([]string, error)

	Close() error
}

// ErrIO matches every backing-medium failure via errors.Is.
var ErrIO = errors.New("backing medium failure")

// IOError reports a backend failure for one operation. It is returned to the
// caller as-is; the store never retries.
type IOError struct {
	Op       string
	Category string
	Key      string
	Err      error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Category, e.Key, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
