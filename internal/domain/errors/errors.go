package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Gateway errors
	ErrProviderNotFound      = errors.New("payment provider not found")
	ErrOperationNotSupported = errors.New("operation not supported by provider")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")

	// Transaction errors
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrRefundExceedsCaptured = errors.New("refund exceeds captured amount")

	// Lifecycle errors
	ErrStepInProgress = errors.New("lifecycle step already in progress")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
)

// DeclineReason is a normalized sub-category for provider declines, so callers
// can show targeted guidance without parsing provider-specific text.
type DeclineReason string

const (
	DeclineGeneric           DeclineReason = "declined"
	DeclineInsufficientFunds DeclineReason = "insufficient_funds"
	DeclineInvalidNumber     DeclineReason = "invalid_number"
	DeclineInvalidExpiry     DeclineReason = "invalid_expiry"
	DeclineInvalidCVC        DeclineReason = "invalid_cvc"
	DeclineExpiredCard       DeclineReason = "expired_card"
	DeclineFraudSuspected    DeclineReason = "fraud_suspected"
	DeclineProcessorError    DeclineReason = "processor_error"
)

// MessageKey returns the stable, localizable key for this decline reason.
func (r DeclineReason) MessageKey() string {
	return "payment.decline." + string(r)
}

// ConfigurationError reports every missing or blank credential for a provider,
// detected before any network call.
type ConfigurationError struct {
	Provider string
	Missing  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s configuration missing: %s", e.Provider, strings.Join(e.Missing, ", "))
}

// MessageKey returns the stable, localizable key for this error.
func (e *ConfigurationError) MessageKey() string {
	return "payment.error.configuration"
}

// NewConfigurationError creates a ConfigurationError for the given provider.
func NewConfigurationError(provider string, missing ...string) *ConfigurationError {
	return &ConfigurationError{Provider: provider, Missing: missing}
}

// ValidationError means the caller-supplied input is malformed or incomplete
// for the requested operation.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// MessageKey returns the stable, localizable key for this error.
func (e *ValidationError) MessageKey() string {
	if e.Code == "" {
		return "payment.error.validation"
	}
	return "payment.error.validation." + e.Code
}

// NewValidationError creates a ValidationError.
func NewValidationError(code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

// MissingDetailError builds the ValidationError used when a prior transaction's
// details map lacks a key a later lifecycle step requires.
func MissingDetailError(key string) *ValidationError {
	return NewValidationError("missing_detail", key, fmt.Sprintf("prior transaction details missing %q", key))
}

// DeclineError means the provider explicitly refused the payment. It is a
// business outcome, never retried automatically.
type DeclineError struct {
	Provider string
	RawCode  string
	Reason   DeclineReason
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("provider %s declined payment: %s (code %q)", e.Provider, e.Reason, e.RawCode)
}

// MessageKey returns the stable, localizable key for this decline.
func (e *DeclineError) MessageKey() string {
	return e.Reason.MessageKey()
}

// NewDeclineError creates a DeclineError carrying the provider's raw code.
func NewDeclineError(provider, rawCode string, reason DeclineReason) *DeclineError {
	return &DeclineError{Provider: provider, RawCode: rawCode, Reason: reason}
}

// TransientError means the provider could not be reached or timed out.
// Safe for the caller to retry with backoff.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("provider %s unreachable: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MessageKey returns the stable, localizable key for this error.
func (e *TransientError) MessageKey() string {
	return "payment.error.transient"
}

// NewTransientError wraps a transport failure for the given provider.
func NewTransientError(provider string, err error) *TransientError {
	return &TransientError{Provider: provider, Err: err}
}

// ProtocolError means the provider returned a response the adapter cannot
// parse, or an unexpected success shape. Fatal for the current attempt.
type ProtocolError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s protocol error: %s: %v", e.Provider, e.Detail, e.Err)
	}
	return fmt.Sprintf("provider %s protocol error: %s", e.Provider, e.Detail)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// MessageKey returns the stable, localizable key for this error.
func (e *ProtocolError) MessageKey() string {
	return "payment.error.protocol"
}

// NewProtocolError creates a ProtocolError.
func NewProtocolError(provider, detail string, err error) *ProtocolError {
	return &ProtocolError{Provider: provider, Detail: detail, Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsDecline reports whether err is a provider decline.
func IsDecline(err error) bool {
	var de *DeclineError
	return errors.As(err, &de)
}

// MessageKeyOf extracts the localizable message key from any taxonomy error.
// Unknown errors map to a generic internal key.
func MessageKeyOf(err error) string {
	type keyed interface{ MessageKey() string }
	var k keyed
	if errors.As(err, &k) {
		return k.MessageKey()
	}
	if errors.Is(err, ErrOperationNotSupported) {
		return "payment.error.not_supported"
	}
	return "payment.error.internal"
}
