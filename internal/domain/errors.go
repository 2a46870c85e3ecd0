package domain

import "errors"

// Validation failures. These are raised before any I/O and are safe to show to the operator.
var (
	ErrNoMemberSelected    = errors.New("no member selected")
	ErrInvalidAmount       = errors.New("amount must be a positive whole number")
	ErrInsufficientBalance = errors.New("amount exceeds available balance")
	ErrInvalidWeight       = errors.New("weight must be positive with at most 3 decimals and below 1e9 kg")
	ErrEmptyTransaction    = errors.New("transaction has no items")
	ErrInvalidPrice        = errors.New("price must not be negative")
	ErrInvalidPhotoURL     = errors.New("photo url must be an absolute http(s) url")
	ErrDuplicateCode       = errors.New("member code already in use")
	ErrMissingField        = errors.New("required field is empty")
)

var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrWasteTypeNotFound = errors.New("waste type not found")

	// ErrStoreUnavailable marks a failed read against the store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPersistence marks a failed atomic write. Nothing from the write is visible.
	ErrPersistence = errors.New("persistence failed")
)

// ValidationError wraps one of the validation sentinels with operator-facing detail.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError around sentinel.
func Invalid(sentinel error, detail string) error {
	return &ValidationError{Err: sentinel, Detail: detail}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
