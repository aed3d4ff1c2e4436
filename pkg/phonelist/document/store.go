package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/code-payments/phonelist-server/pkg/pointer"
)

var (
	ErrVersionConflict  = errors.New("document version conflict")
	ErrCorruptDocument  = errors.New("stored document is not a json array of strings")
	ErrNotConfigured    = errors.New("document store configuration missing")
	ErrInvalidName      = errors.New("invalid document name")
	ErrDocumentNotFound = errors.New("document not found")
)

// Document is a snapshot of a named list. A nil Version means the document
// doesn't exist in the store.
type Document struct {
	Name    string
	Items   []string
	Version *string
}

// Exists returns whether the document has been written to the store
func (d *Document) Exists() bool {
	return d.Version != nil
}

func (d *Document) Clone() *Document {
	cloned := &Document{
		Name:  d.Name,
		Items: make([]string, len(d.Items)),
	}
	copy(cloned.Items, d.Items)

	cloned.Version = pointer.StringCopy(d.Version)
	return cloned
}

type Store interface {
	// Read gets the current snapshot of a document. A document that doesn't exist
	// is not an error, and yields an empty item list with a nil version.
	Read(ctx context.Context, name string) (*Document, error)

	// Write replaces the document's items, conditioned on the store's current
	// version matching expectedVersion. A nil expectedVersion requires that the
	// document doesn't yet exist. A *ConflictError matching ErrVersionConflict is
	// returned when the condition fails, in which case nothing is modified. The
	// description is a human readable summary of the change, which stores may
	// use as a commit message or annotation.
	Write(ctx context.Context, name string, items []string, expectedVersion *string, description string) (string, error)
}

// ConflictError is returned when a conditional write observes a different
// version than the one expected
type ConflictError struct {
	Name            string
	ExpectedVersion *string
}

func (e *ConflictError) Error() string {
	if e.ExpectedVersion == nil {
		return fmt.Sprintf("document %s: version conflict: expected document to not exist", e.Name)
	}
	return fmt.Sprintf("document %s: version conflict: expected version %s", e.Name, *e.ExpectedVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// StoreError is a transport or unexpected response failure interacting with
// the backing store. It is never retried by callers.
type StoreError struct {
	Op   string
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("document %s: %s failed: %v", e.Name, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps a backend failure. Errors that are already classified
// as conflicts, store errors or missing configuration are returned as is.
func NewStoreError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	var storeErr *StoreError
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotConfigured) || errors.As(err, &storeErr) {
		return err
	}

	return &StoreError{
		Op:   op,
		Name: name,
		Err:  err,
	}
}

// IsStoreError returns whether err is a non-retryable store failure
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
