package biomatch

import (
	"errors"
	"fmt"

	"github.com/authentix/biomatch/index/identity"
)

var (
	// ErrEngineClosed is returned when operations are attempted on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrEmptyUserID is returned when an enrollment or verification names no user.
	ErrEmptyUserID = errors.New("empty user id")

	// ErrStorage wraps failures of the write-through persistence layer.
	// When a flush fails the in-memory state is rolled back, so an error
	// matching ErrStorage means the enrollment did not happen at all.
	ErrStorage = errors.New("storage failure")
)

// ErrDimensionMismatch indicates a biometric sample whose vector length
// disagrees with the modality's configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError converts index-level errors into engine-level ones so
// callers only depend on this package's error types.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dimErr *identity.ErrDimensionMismatch
	if errors.As(err, &dimErr) {
		return &ErrDimensionMismatch{
			Expected: dimErr.Expected,
			Actual:   dimErr.Actual,
			cause:    err,
		}
	}
	if errors.Is(err, identity.ErrEmptyLabel) {
		return ErrEmptyUserID
	}
	return err
}

// storageError wraps err so it matches ErrStorage via errors.Is.
func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
