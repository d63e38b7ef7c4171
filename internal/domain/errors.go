package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrEffectNotFound is returned for unknown or inactive effects
	ErrEffectNotFound = errors.New("effect not found")

	// ErrUploadNotFound is returned when the upload does not exist
	ErrUploadNotFound = errors.New("upload not found")

	// ErrCategoryNotFound is returned when a category slug is unknown
	ErrCategoryNotFound = errors.New("category not found")

	// ErrSchedulingFailed is returned when an admitted job could not be handed to a worker
	ErrSchedulingFailed = errors.New("job scheduling failed")
)

// DenialReason explains why the quota ledger refused a job.
type DenialReason string

const (
	DenialQuotaExceeded   DenialReason = "quota_exceeded"
	DenialPremiumRequired DenialReason = "premium_required"
)

// AdmissionDeniedError is surfaced synchronously; no job is created.
type AdmissionDeniedError struct {
	Reason DenialReason
}

func (e *AdmissionDeniedError) Error() string {
	return fmt.Sprintf("admission denied: %s", e.Reason)
}

// IsAdmissionDenied extracts the denial reason from err, if any.
func IsAdmissionDenied(err error) (DenialReason, bool) {
	var denied *AdmissionDeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}
