package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrOwnershipMismatch = errors.New("ownership mismatch")
	ErrQuantityExceeded  = errors.New("quantity exceeded")
	ErrDuplicateCode     = errors.New("duplicate code")
	ErrPartialBatch      = errors.New("partial batch failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// PartialBatchError reports a chunked write that stopped part way.
// Rows counted in Committed are visible in the store.
type PartialBatchError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("partial batch failure: %d of %d rows committed: %v", e.Committed, e.Total, e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

func (e *PartialBatchError) Is(target error) bool { return target == ErrPartialBatch }

// Kind returns the wire name of the error's taxonomy kind, or "Internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialBatch):
		return "PartialBatchFailure"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrOwnershipMismatch):
		return "OwnershipMismatch"
	case errors.Is(err, ErrQuantityExceeded):
		return "QuantityExceeded"
	case errors.Is(err, ErrDuplicateCode):
		return "DuplicateCode"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	}
	return "Internal"
}
