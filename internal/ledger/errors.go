package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced feature does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status change would move backwards
	// or leave a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSchemaInvalid is returned when the ledger file lacks a core table or column.
	ErrSchemaInvalid = errors.New("ledger schema is invalid")
)

// StorageError wraps any failure of a ledger write. The enclosing transaction
// has been rolled back when one is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
