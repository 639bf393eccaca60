package errors

import "fmt"

// APIError is the JSON error payload returned by the HTTP API.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes
const (
	InvalidRequest = "invalid_request"
	InvalidCode    = "invalid_code"
	ServerError    = "server_error"
)

// NewInvalidRequest reports a malformed or incomplete request body.
func NewInvalidRequest(description string) *APIError {
	return &APIError{
		Code:        InvalidRequest,
		Description: description,
	}
}

// NewInvalidCode is the single payload returned for every failed redemption,
// whatever the underlying outcome. Which of the outcomes occurred stays in
// the logs; distinguishing them in the response would aid enumeration.
func NewInvalidCode() *APIError {
	return &APIError{
		Code:        InvalidCode,
		Description: "This link has expired or was already used. Please request a new one.",
	}
}

// NewServerError reports a transient internal failure the client may retry.
func NewServerError() *APIError {
	return &APIError{
		Code:        ServerError,
		Description: "Something went wrong on our side. Please try again.",
	}
}
