package errors

import "net/http"

// APIError is the error shape every HTTP endpoint returns. Services build
// these directly so handlers only have to render them.
type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Body is the JSON envelope written to clients.
func (e *APIError) Body() map[string]interface{} {
	body := map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
	}
	if e.Details != nil {
		body["details"] = e.Details
	}
	return map[string]interface{}{"error": body}
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

// Conflict carries the current server-side state in details so clients can
// resync without a second request.
func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

func ServiceUnavailable(code, message string) *APIError {
	return New(http.StatusServiceUnavailable, code, message)
}
