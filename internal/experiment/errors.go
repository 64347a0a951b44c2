package experiment

import (
	"errors"
	"fmt"
)

// The per-item failure taxonomy. Every failure an item can hit maps to
// exactly one of these types; none of them aborts the run. The scheduler
// retries TransientError up to its attempt budget and surfaces everything
// else immediately.

// TransientError is a retryable provider failure: rate-limit responses,
// server errors, connection resets. Bounded retries apply.
type TransientError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error (%s): %s", e.Provider, e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a provider failure that retrying cannot fix:
// authentication, malformed request, content-policy rejection.
type PermanentError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent provider error (%s): %s", e.Provider, e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ParseError means the provider responded but the response did not contain
// what extraction requires: no conforming function, more than one, or a
// dataset with the wrong shape.
type ParseError struct {
	Reason string
	// Raw is the full response text that failed extraction, kept so the
	// coordinator can persist it for inspection.
	Raw string
}

func (e *ParseError) Error() string { return "parse error: " + e.Reason }

// ValidationError means a code artifact referenced a disallowed capability
// or a dataset failed schema validation. For code this is raised by the
// static pre-check, before anything executes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

// RetriesExhaustedError wraps the last transient error once the attempt
// budget is spent. It is terminal for the item, never for the run.
type RetriesExhaustedError struct {
	Provider string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts to %s failed: %v", e.Attempts, e.Provider, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FailureStatus maps a terminal item error to the status recorded in the run
// log. Sandbox-stage outcomes carry their own Status and do not pass through
// here.
func FailureStatus(err error) string {
	var (
		pe *ParseError
		ve *ValidationError
		re *RetriesExhaustedError
	)
	switch {
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &ve):
		return string(StatusValidationError)
	case errors.As(err, &re):
		return "retries_exhausted"
	case IsTransient(err):
		return "transient_error"
	default:
		var perm *PermanentError
		if errors.As(err, &perm) {
			return "permanent_error"
		}
		return "error"
	}
}
