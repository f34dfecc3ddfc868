package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the intake pipeline. Handlers map these to HTTP
// status codes; anything else is an opaque internal failure.
var (
	ErrRateLimited        = errors.New("rate limited")
	ErrAttestationFailed  = errors.New("attestation failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAttachmentsMissing = errors.New("attachments missing")
	ErrNotFound           = errors.New("report not found")
)

// RateLimitedError carries the window reset hint
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// InvalidInputError carries the structured rejection reasons
type InvalidInputError struct {
	Reasons []string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + strings.Join(e.Reasons, "; ")
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }
