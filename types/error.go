package types

import "fmt"

// ErrorKind is the stable classification of engine errors. Every failure
// surfaced to a caller carries exactly one kind.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration-error"
	KindTemplate      ErrorKind = "template-error"
	KindExecution     ErrorKind = "execution-error"
	KindProvider      ErrorKind = "provider-error"
)

// Error is the structured error surfaced by the engine: a kind, a stable
// code, a human message, and a details bag (JSON paths, offending
// identifiers, suggestions).
type Error struct {
	Kind    ErrorKind      `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates an Error with the given kind, code and message.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithDetail adds a key to the details bag.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// FailureReason classifies provider failures for fallback decisions.
type FailureReason string

const (
	ReasonRateLimit     FailureReason = "rate-limit"
	ReasonTimeout       FailureReason = "timeout"
	ReasonProviderError FailureReason = "provider-error"
)

// ProviderError is the normalized provider failure. Retryable failures
// (rate limits and timeouts) let the fallback executor continue to the
// next target; everything else is terminal.
type ProviderError struct {
	Reason     FailureReason `json:"reason"`
	Retryable  bool          `json:"retryable"`
	Provider   string        `json:"provider,omitempty"`
	Code       string        `json:"code,omitempty"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Message    string        `json:"message"`
	Cause      error         `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Reason, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.Cause }
