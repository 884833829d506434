package aidefense

import (
	"errors"
	"fmt"
)

var (
	// ErrAPIKeyRequired is returned by the client constructors when no API key was provided.
	ErrAPIKeyRequired = errors.New("API key is required")
	// ErrInvalidAPIKey is returned when the API key is present but is not a 64 character service key.
	ErrInvalidAPIKey = errors.New("API key must be a 64 character service key")
	// ErrInvalidBaseURL is returned when the configured base URL cannot be parsed as an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("base URL must be an absolute http(s) URL")
	// ErrInvalidRegion is returned when the configured region is not one of the supported regions.
	ErrInvalidRegion = errors.New("unknown region")
	// ErrInvalidTimeout is returned when the configured timeout is zero or negative.
	ErrInvalidTimeout = errors.New("timeout must be positive")
	// ErrInvalidRetryConfig is returned when the retry configuration contains non-positive intervals.
	ErrInvalidRetryConfig = errors.New("retry intervals must be positive")
)

// SDKError is implemented by every error type this package returns. It lets callers
// catch broadly without caring which kind of failure occurred:
//
//	result, err := client.InspectPrompt(ctx, prompt, aidefense.InspectOptions{})
//	if err != nil {
//		var sdkErr aidefense.SDKError
//		if errors.As(err, &sdkErr) {
//			// Any failure produced by the SDK: configuration, validation, or API.
//		}
//	}
//
// Narrow the match with the concrete types instead when the distinction matters:
// *ConfigError for construction failures, *ValidationError for bad caller input that
// never reached the network, and *APIError for anything that went wrong talking to
// the service.
type SDKError interface {
	error
	sdkError()
}

// ConfigError is returned by the client constructors when the supplied options do not
// resolve to a usable configuration. Option names the offending option.
type ConfigError struct {
	// Option is the name of the configuration option that failed validation.
	Option string
	// Reason describes what was wrong with the value.
	Reason string
	// Err is the underlying sentinel, one of the Err* values in this package.
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Option, e.Reason)
}

// Unwrap returns the underlying sentinel so errors.Is works against the Err* values.
func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) sdkError() {}

// ValidationError is returned when caller-supplied input is structurally invalid: an
// unknown HTTP method, a URL without scheme or host, an unknown chat role, a body the
// serializer cannot encode. Validation runs before any network activity, so a
// ValidationError guarantees no request was sent. The same input always produces the
// same error.
type ValidationError struct {
	// Field is the name of the input that failed validation.
	Field string
	// Message describes why the value was rejected.
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) sdkError() {}

func validationErr(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// APIError is returned when the inspection service could not be reached, answered
// with a non-success status after retries were exhausted, or answered with a body
// that does not parse into a verdict. The fault lies on the service side of the
// wire, never with the caller's input.
type APIError struct {
	// Message describes the failure.
	Message string
	// StatusCode is the last observed HTTP status, or 0 when no response was received.
	StatusCode int
	// RequestID is the trace identifier that was attached to the failed request.
	// Quote it when contacting support; it correlates with server-side logs.
	RequestID string
	// Err is the underlying transport error, if any.
	Err error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: %s", e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request id %s)", msg, e.RequestID)
	}
	return msg
}

// Unwrap returns the underlying transport error, so errors.Is can see through to
// context.DeadlineExceeded and friends.
func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) sdkError() {}
