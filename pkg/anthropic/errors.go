package anthropic

import (
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// APIError is a transport-level failure from the model provider: the request
// never produced a usable completion (network failure, auth rejection, rate
// limit, server error). Callers distinguish it from malformed-but-delivered
// responses, which never produce an APIError.
type APIError struct {
	StatusCode int // 0 when the failure happened below HTTP
	Err        error
}

func (e *APIError) Error() string {
	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is safe to retry (rate limits,
// timeouts, server-side errors). Auth and request-shape errors are not.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	case 0:
		// No HTTP status: the request died on the wire.
		return true
	default:
		return false
	}
}

// IsAPIError extracts an APIError from an error chain.
func IsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// classifyError wraps a CreateMessage failure as an APIError, pulling the
// HTTP status from the SDK error when one is present.
func classifyError(wrapped, cause error) error {
	status := 0
	var sdkErr *sdk.Error
	if errors.As(cause, &sdkErr) {
		status = sdkErr.StatusCode
	}
	return &APIError{StatusCode: status, Err: wrapped}
}
