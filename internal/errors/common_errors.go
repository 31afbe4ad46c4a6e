package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeParsing             ErrorType = "PARSING"
	ErrTypeStorage             ErrorType = "STORAGE"
	ErrTypeValidation          ErrorType = "VALIDATION"
	ErrTypeNotFound            ErrorType = "NOT_FOUND"
	ErrTypeConfig              ErrorType = "CONFIG"
	ErrTypeInsufficientHistory ErrorType = "INSUFFICIENT_HISTORY"
	ErrTypeDegenerateStatistic ErrorType = "DEGENERATE_STATISTIC"
	ErrTypeModelFit            ErrorType = "MODEL_FIT"
	ErrTypeNoData              ErrorType = "NO_DATA"
)

// Sentinels for errors.Is checks. Every AppError of the matching type
// reports true for its sentinel.
var (
	ErrInsufficientHistory = stderrors.New("insufficient history")
	ErrModelFit            = stderrors.New("model fit failure")
	ErrNoData              = stderrors.New("no data")
	ErrDegenerateStatistic = stderrors.New("degenerate statistic")
)

var sentinels = map[ErrorType]error{
	ErrTypeInsufficientHistory: ErrInsufficientHistory,
	ErrTypeModelFit:            ErrModelFit,
	ErrTypeNoData:              ErrNoData,
	ErrTypeDegenerateStatistic: ErrDegenerateStatistic,
}

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel registered for the error's type
func (e *AppError) Is(target error) bool {
	if s, ok := sentinels[e.Type]; ok {
		return s == target
	}
	return false
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewInsufficientHistoryError reports a series too short for the requested window
func NewInsufficientHistoryError(rows, periodDays int) *AppError {
	return NewAppError(ErrTypeInsufficientHistory,
		fmt.Sprintf("%d usable rows, need more than %d", rows, periodDays), nil).
		WithContext("rows", rows).
		WithContext("period_days", periodDays)
}

// NewModelFitError wraps a failure inside a strategy's fit or predict step
func NewModelFitError(strategy string, cause error) *AppError {
	return NewAppError(ErrTypeModelFit, fmt.Sprintf("%s fit failed", strategy), cause).
		WithContext("strategy", strategy)
}

// NewNoDataError reports a filter selection that matched no rows
func NewNoDataError(selection string) *AppError {
	return NewAppError(ErrTypeNoData, fmt.Sprintf("no data for %s", selection), nil)
}
