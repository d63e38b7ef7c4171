package generation

import (
	"errors"
	"fmt"
)

// Kind classifies a failed provider call.
type Kind string

const (
	// KindProviderUnavailable covers transport failures and missing credentials.
	KindProviderUnavailable Kind = "provider_unavailable"
	// KindProviderRejected covers non-2xx statuses and malformed bodies.
	KindProviderRejected Kind = "provider_rejected"
	// KindNoImageReturned is a well-formed response without image data.
	KindNoImageReturned Kind = "no_image_returned"
)

// ReasonNotConfigured tags a provider_unavailable error caused by a missing API key.
const ReasonNotConfigured = "not_configured"

// Error is the typed failure returned by every Client.
type Error struct {
	Kind       Kind
	Reason     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later attempt could succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindProviderUnavailable && e.Reason != ReasonNotConfigured
}

// AsError extracts a generation error from err.
func AsError(err error) (*Error, bool) {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr, true
	}
	return nil, false
}
