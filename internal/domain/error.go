package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("operation not permitted")

	// Entitlement errors, surfaced to the redeeming user with their figures.
	ErrCodeNotFound      = errors.New("redeem code not found")
	ErrCodeNotYetActive  = errors.New("redeem code is not active yet")
	ErrCodeExhausted     = errors.New("redeem code usage limit reached")
	ErrAlreadyClaimed    = errors.New("redeem code already claimed by user")
	ErrCodeExpired       = errors.New("redeem code has expired")
	ErrUserQuotaExceeded = errors.New("user reached the claimed code limit")

	// Policy refusals.
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrAdminQuotaExceeded = errors.New("daily admin quota exceeded")

	// ErrStoreContention means the critical section could not be acquired or the
	// document could not be persisted. The store retries it before giving up.
	ErrStoreContention = errors.New("store contention")
	ErrStoreFailure    = errors.New("store unavailable, please try again later")

	ErrTemplateNotFound = errors.New("template not found")
	ErrNoSession        = errors.New("no active wizard session")
)

// EntitlementError carries the figures a user needs to understand why a code was refused.
type EntitlementError struct {
	Err        error
	Code       string
	ActivateAt time.Time
	ExpiresAt  time.Time
	Limit      int
	Used       int
	Max        int
	Claimed    int
}

func (e *EntitlementError) Error() string {
	switch e.Err {
	case ErrCodeNotYetActive:
		return fmt.Sprintf("%s: %s activates at %s", e.Err, e.Code, e.ActivateAt.Format("2006-01-02 15:04"))
	case ErrCodeExhausted:
		return fmt.Sprintf("%s: %s used %d/%d", e.Err, e.Code, e.Used, e.Limit)
	case ErrCodeExpired:
		return fmt.Sprintf("%s: %s expired at %s", e.Err, e.Code, e.ExpiresAt.Format("2006-01-02 15:04"))
	case ErrUserQuotaExceeded:
		return fmt.Sprintf("%s: %d/%d", e.Err, e.Claimed, e.Max)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Code)
	}
	return e.Err.Error()
}

func (e *EntitlementError) Unwrap() error { return e.Err }

// ValidationError is malformed user input. Wizards re-prompt the same step.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// CollaboratorError wraps failures of external I/O (messaging, sticker cloning).
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *CollaboratorError) Unwrap() error { return e.Err }

const maxDiagnostic = 200

// Diagnostic is the user-facing, truncated form of the failure.
func (e *CollaboratorError) Diagnostic() string {
	msg := e.Error()
	if r := []rune(msg); len(r) > maxDiagnostic {
		return string(r[:maxDiagnostic]) + "..."
	}
	return msg
}
