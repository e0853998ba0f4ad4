package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fielddoc/fielddoc/internal/web/query"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RenderError renders a standard error response. Rejected sort columns and
// relation paths are rendered as 422 regardless of statusCode.
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	RenderErrorWithCode(w, statusCode, err, "")
}

// RenderErrorWithCode renders an error with a specific error code
func RenderErrorWithCode(w http.ResponseWriter, statusCode int, err error, code string) {
	if details, ok := validationDetails(err); ok {
		renderError(w, http.StatusUnprocessableEntity, &ErrorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
			Code:    "validation_error",
			Details: details,
		})
		return
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		if code == "" {
			code = httpErr.Code
		}
	}

	// Generate error code from status if not provided
	if code == "" {
		code = errorCodeFromStatus(statusCode)
	}

	renderError(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    code,
	})
}

// RenderErrorWithDetails renders an error with additional details
func RenderErrorWithDetails(w http.ResponseWriter, statusCode int, err error, details map[string]any) {
	renderError(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    errorCodeFromStatus(statusCode),
		Details: details,
	})
}

// RenderBadRequest renders a 400 Bad Request error
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusBadRequest, errors.New(message))
}

// RenderUnauthorized renders a 401 Unauthorized error
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="fielddoc"`)
	RenderError(w, http.StatusUnauthorized, errors.New(message))
}

// RenderNotFound renders a 404 Not Found error
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RenderError(w, http.StatusNotFound, errors.New(message))
}

// RenderTooManyRequests renders a 429 response.
func RenderTooManyRequests(w http.ResponseWriter, message string) {
	renderError(w, http.StatusTooManyRequests, &ErrorResponse{
		Error:   "error",
		Message: message,
		Code:    "too_many_requests",
	})
}

// RenderInternalError renders a 500 Internal Server Error. The cause is not
// exposed to the client.
func RenderInternalError(w http.ResponseWriter) {
	RenderError(w, http.StatusInternalServerError, errors.New("Internal server error"))
}

// RenderServiceUnavailable renders a 503 Service Unavailable error
func RenderServiceUnavailable(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	RenderError(w, http.StatusServiceUnavailable, errors.New(message))
}

func renderError(w http.ResponseWriter, statusCode int, body *ErrorResponse) {
	if err := writeJSON(w, statusCode, body); err != nil {
		http.Error(w, body.Message, statusCode)
	}
}

func validationDetails(err error) (map[string]any, bool) {
	var sortErr *query.InvalidSortFieldError
	if errors.As(err, &sortErr) {
		return map[string]any{"field": sortErr.Field, "allowed": sortErr.Allowed}, true
	}

	var relErr *query.InvalidRelationPathError
	if errors.As(err, &relErr) {
		return map[string]any{"path": relErr.Path, "allowed": relErr.Allowed}, true
	}

	return nil, false
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       errorCodeFromStatus(statusCode),
	}
}

// HTTPErrorf formats a message into a new HTTP error.
func HTTPErrorf(statusCode int, format string, args ...any) *HTTPError {
	return NewHTTPError(statusCode, fmt.Sprintf(format, args...))
}
