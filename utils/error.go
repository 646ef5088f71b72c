package utils

import "errors"

// Failure taxonomy for orchestrated operations. Every failure aborts the
// whole operation; nothing is committed before the error is surfaced.
var (
	ErrorRecordNotFound          = errors.New("record not found")
	ErrorInsufficientStock       = errors.New("insufficient stock")
	ErrorInvalidStatusTransition = errors.New("invalid status transition")
	ErrorLocationMismatch        = errors.New("location mismatch")
	ErrorExcessReceipt           = errors.New("received quantity exceeds remaining quantity")
	ErrorValidation              = errors.New("validation error")
	// ErrorConflictRetry is returned when the store reports a serialization
	// conflict or lock timeout. Safe to retry: nothing committed.
	ErrorConflictRetry = errors.New("write conflict, retry")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
