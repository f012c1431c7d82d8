package feishu

import "fmt"

// AuthError indicates that tenant access token issuance failed.
// It is fatal: nothing can be retried without a token.
type AuthError struct {
	Code int
	Body string
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return fmt.Sprintf("token issuance failed (code %d): %s", e.Code, e.Body)
}

// APIError indicates that the Bitable API rejected a request with a
// non-zero application code. Hint carries a human-readable explanation
// for the codes seen in practice.
type APIError struct {
	Code int
	Msg  string
	Hint string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("feishu API error %d: %s (%s)", e.Code, e.Msg, e.Hint)
	}
	return fmt.Sprintf("feishu API error %d: %s", e.Code, e.Msg)
}

// TransportError indicates the HTTP call itself failed before any
// application-level response was produced.
type TransportError struct {
	Op    string
	Cause error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Cause)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// newAPIError builds an APIError, attaching a hint for known codes.
func newAPIError(code int, msg string) *APIError {
	return &APIError{Code: code, Msg: msg, Hint: hintFor(code)}
}

func hintFor(code int) string {
	switch code {
	case 91403:
		return "permission denied, check the app's permission settings"
	case 19021:
		return "access token expired or invalid"
	case 404:
		return "record or table not found"
	default:
		return ""
	}
}
