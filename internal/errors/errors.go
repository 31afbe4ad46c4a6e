package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried by APIError and echoed as the error_code extension
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidJSON          = "INVALID_JSON"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeJobNotFound          = "JOB_NOT_FOUND"
	CodeJobFinished          = "JOB_FINISHED"
	CodeQueueUnavailable     = "SERVICE_UNAVAILABLE"
)

// APIError is a request-level failure with a fixed HTTP status, as opposed to
// the domain AppError taxonomy which the handler maps onto statuses.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError names one rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every rejected field of a request
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// New creates an APIError
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails creates an APIError with a details payload
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// ErrJobNotFound is wrapped by job stores when an id is unknown
var ErrJobNotFound = New(http.StatusNotFound, CodeJobNotFound, "Ranking job not found")

// InvalidRequestWithError reports a body or parameter that could not be decoded
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrInvalidJSON reports a body that is not well-formed JSON
func ErrInvalidJSON() *APIError {
	return New(http.StatusBadRequest, CodeInvalidJSON, "Request body contains invalid JSON")
}

// ErrValidation reports one rejected query parameter or field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors reports several rejected fields at once
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// ErrPayloadTooLarge reports a body over the configured limit
func ErrPayloadTooLarge(size, max int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
		"Request body exceeds maximum allowed size",
		map[string]int64{"max_size": max, "size": size})
}

// ErrUnsupportedMediaType reports a body whose content type is not accepted
func ErrUnsupportedMediaType(contentType string, allowed []string) *APIError {
	return NewWithDetails(http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported content type",
		map[string]interface{}{"content_type": contentType, "allowed": allowed})
}

// ErrQueueUnavailable reports a ranking job the queue refused
func ErrQueueUnavailable(cause error) *APIError {
	return NewWithDetails(http.StatusServiceUnavailable, CodeQueueUnavailable,
		"Ranking queue is not accepting jobs", cause.Error())
}

// ErrJobFinished reports a cancel request for a job that already finished
func ErrJobFinished(id string, cause error) *APIError {
	return NewWithDetails(http.StatusConflict, CodeJobFinished,
		fmt.Sprintf("Job %s can no longer be cancelled", id), cause.Error())
}
