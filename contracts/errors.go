package contracts

import (
	"errors"
	"fmt"
)

var (
	// Fatal message conditions, rejected without retry.
	ErrMalformedBody     = errors.New("jobs: malformed message body")
	ErrMissingPayload    = errors.New("jobs: missing required payload")
	ErrInvalidPayload    = errors.New("jobs: invalid payload")
	ErrUnsupportedSchema = errors.New("jobs: unsupported schema version")

	// Publisher-side conditions.
	ErrBrokerUnavailable = errors.New("jobs: broker channel pool unavailable")
	ErrInvalidFallback   = errors.New("jobs: invalid fallback strategy")
)

// FatalError marks a delegate failure that must not be retried. The worker
// rejects the message immediately, routing it to the dead-letter path.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as non-retryable. A nil err returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err, anywhere in its chain, is marked fatal or is
// one of the fatal message-condition sentinels.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	switch {
	case errors.Is(err, ErrMalformedBody),
		errors.Is(err, ErrMissingPayload),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnsupportedSchema):
		return true
	}
	return false
}
