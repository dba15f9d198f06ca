package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure. The set is closed: every error that
// crosses the token validator boundary carries exactly one of these kinds so
// the gateway can map it to a stable external response.
type Kind string

const (
	// KindConfiguration means the validation policy is incomplete for this
	// request (for example, no JWKS URL is configured). Fatal to the request,
	// not to the process.
	KindConfiguration Kind = "CONFIGURATION_ERROR"

	// KindDecode means the token could not be parsed into a JWT structure
	// at all. Deterministic, never retried.
	KindDecode Kind = "DECODE_ERROR"

	// KindInvalidToken means the token parsed but failed verification for a
	// deterministic reason: bad signature, disallowed algorithm, wrong
	// audience or issuer, not yet valid. Never retried.
	KindInvalidToken Kind = "INVALID_TOKEN"

	// KindExpiredToken means the signature checked out but the token's expiry
	// is in the past. Deterministic, never retried.
	KindExpiredToken Kind = "TOKEN_EXPIRED"

	// KindValidationFailed covers any other verification failure, including
	// key-source errors. The only retryable kind.
	KindValidationFailed Kind = "VALIDATION_FAILED"
)

// Sentinel errors for the key source client and credential extraction.
var (
	ErrKeySourceUnavailable = errors.New("signing key source unavailable")
	ErrKeyNotFound          = errors.New("signing key not found in key set")
	ErrTokenMissing         = errors.New("token is missing")
	ErrSchemeInvalid        = errors.New("authorization scheme is not Bearer")
)

// AuthError is the structured error returned by the token validator.
type AuthError struct {
	// Kind is the failure classification.
	Kind Kind

	// Message is a short operator-facing description. It must never contain
	// the raw token.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// New creates a new AuthError.
func New(kind Kind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind carried by err. Errors that are not AuthError are
// treated as KindValidationFailed. A nil err has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindValidationFailed
}

// Retryable reports whether err represents a transient failure worth
// retrying. Only KindValidationFailed qualifies, and within it a key id
// missing from a freshly fetched set is still deterministic: fetching the
// same set again cannot make the key appear. Expired, invalid, and
// undecodable tokens are likewise deterministic, and retrying them wastes
// latency and amplifies load on the key source.
func Retryable(err error) bool {
	if KindOf(err) != KindValidationFailed {
		return false
	}
	return !errors.Is(err, ErrKeyNotFound)
}

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
