package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input (unknown task type, nonexistent record id)
	ErrValidation = errors.New("validation error")

	// ErrPreconditionNotMet indicates a derived channel was requested before the OJ channel completed
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrConfigurationMissing indicates the provider has no usable configuration
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrProviderError indicates a provider call failed for a single record
	ErrProviderError = errors.New("provider error")

	// ErrConflict indicates the operation is not allowed in the current state
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or has a bad signature
	ErrTokenInvalid = errors.New("invalid token")

	// ErrForbidden indicates the caller lacks the required role
	ErrForbidden = errors.New("forbidden")
)

// ErrorCode returns the machine-readable code the API reports for err.
// Unknown errors map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrPreconditionNotMet):
		return "precondition_not_met"
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrProviderError):
		return "provider_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal_error"
	}
}

// RecordError is a domain error tied to specific record ids.
// It unwraps to its Kind so callers can use errors.Is.
type RecordError struct {
	Kind      error
	RecordIDs []int64
	Detail    string
}

// NewRecordError creates a RecordError of the given kind.
func NewRecordError(kind error, detail string, ids ...int64) *RecordError {
	return &RecordError{Kind: kind, RecordIDs: ids, Detail: detail}
}

func (e *RecordError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.RecordIDs) > 0 {
		ids := make([]string, len(e.RecordIDs))
		for i, id := range e.RecordIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(&b, " (record ids: %s)", strings.Join(ids, ", "))
	}
	return b.String()
}

func (e *RecordError) Unwrap() error {
	return e.Kind
}

// RecordIDsOf extracts the record ids carried by err, if any.
func RecordIDsOf(err error) []int64 {
	var re *RecordError
	if errors.As(err, &re) {
		return re.RecordIDs
	}
	return nil
}
