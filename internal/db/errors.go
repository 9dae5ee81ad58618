package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/daviddao/mailnudge/internal/types"
)

var (
	// ErrNotFound is returned when a row with the requested id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMessage is returned by LogIngest when the message id is
	// already in the ledger.
	ErrDuplicateMessage = errors.New("message already ingested")

	// ErrInvalid is returned for inputs the schema would reject.
	ErrInvalid = errors.New("invalid input")
)

// StorageError reports a failed store operation. The transaction it ran in
// has been rolled back.
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

// wrapErr leaves domain errors alone so callers can branch on them
// directly, and wraps everything else in a StorageError.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *types.TransitionError
	var se *StorageError
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateMessage),
		errors.Is(err, ErrInvalid),
		errors.As(err, &te),
		errors.As(err, &se):
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
