package imports

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTooLarge        = errors.New("content too large")
	ErrDuplicateImport = errors.New("duplicate import")
	ErrImportFailed    = errors.New("import failed")
	ErrMalformedExport = errors.New("malformed export")
	ErrInvalidState    = errors.New("invalid import state")
)

// DuplicateError carries the live record that already holds the fingerprint.
type DuplicateError struct {
	Existing Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: fingerprint already imported as %s", ErrDuplicateImport, e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateImport }

// FailedError carries the record of an import that moved to failed.
type FailedError struct {
	Record Record
	Err    error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrImportFailed, e.Err)
}

func (e *FailedError) Unwrap() []error { return []error{ErrImportFailed, e.Err} }
