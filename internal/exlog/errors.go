package exlog

import (
	"errors"
)

var (
	ErrInvalidDuration    = errors.New("duration should be a number representing the minutes")
	ErrInvalidDate        = errors.New("wrong date format, date format is yyyy-MM-dd")
	ErrInvalidDescription = errors.New("description is empty")
	ErrNotFound           = errors.New("not found")
)

// Kind tags an error with its place in the error taxonomy.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindInvalidDuration    Kind = "invalid_duration"
	KindInvalidDate        Kind = "invalid_date"
	KindInvalidDescription Kind = "invalid_description"
	KindNotFound           Kind = "not_found"
	KindStoreFailure       Kind = "store_failure"
)

// StoreError carries a persistence failure. Its message is the store's message, unchanged.
type StoreError struct {
	Err error
}

func NewStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Err: err}
}

func (e *StoreError) Error() string {
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Validation and not-found checks take precedence over store failures.
func KindOf(err error) Kind {
	var storeErr *StoreError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidDuration):
		return KindInvalidDuration
	case errors.Is(err, ErrInvalidDate):
		return KindInvalidDate
	case errors.Is(err, ErrInvalidDescription):
		return KindInvalidDescription
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &storeErr):
		return KindStoreFailure
	default:
		return KindUnknown
	}
}

// IsValidation reports whether err was produced by input validation.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidDuration, KindInvalidDate, KindInvalidDescription:
		return true
	default:
		return false
	}
}

// Message returns the client-facing message for err.
// Validation errors are reported by their sentinel text, without the wrapping detail.
func Message(err error) string {
	switch KindOf(err) {
	case KindInvalidDuration:
		return ErrInvalidDuration.Error()
	case KindInvalidDate:
		return ErrInvalidDate.Error()
	case KindInvalidDescription:
		return ErrInvalidDescription.Error()
	default:
		return err.Error()
	}
}
