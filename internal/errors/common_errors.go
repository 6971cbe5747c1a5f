package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Interaction faults raised while driving the dashboard.
	ErrTypeElementNotFound     ErrorType = "ELEMENT_NOT_FOUND"
	ErrTypeOptionNotFound      ErrorType = "OPTION_NOT_FOUND"
	ErrTypeFilterNotClickable  ErrorType = "FILTER_NOT_CLICKABLE"
	ErrTypeConfirmNotClickable ErrorType = "CONFIRM_NOT_CLICKABLE"

	// Nothing appeared in the download directory in time. Reportable, not a crash.
	ErrTypeDownloadTimeout ErrorType = "DOWNLOAD_TIMEOUT"

	// ETL and persistence faults.
	ErrTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"
	ErrTypeParsing        ErrorType = "PARSING"
	ErrTypeConnection     ErrorType = "CONNECTION"
	ErrTypeLoad           ErrorType = "LOAD"

	ErrTypeNotFound ErrorType = "NOT_FOUND"
	ErrTypeStorage  ErrorType = "STORAGE"
	ErrTypeConfig   ErrorType = "CONFIG"
	ErrTypeBrowser  ErrorType = "BROWSER"
)

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

// TypeOf returns the ErrorType of the outermost AppError in err's chain,
// or the empty string when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// NewElementNotFoundError reports a control that never appeared within the wait budget.
func NewElementNotFoundError(element string, cause error) *AppError {
	return NewAppError(ErrTypeElementNotFound, fmt.Sprintf("element %q not found", element), cause).
		WithContext("element", element)
}

// NewOptionNotFoundError reports a missing option in a select control or filter list.
func NewOptionNotFoundError(control, option string, cause error) *AppError {
	return NewAppError(ErrTypeOptionNotFound, fmt.Sprintf("option %q not available in %s", option, control), cause).
		WithContext("control", control).
		WithContext("option", option)
}

// NewFilterNotClickableError reports a filter header that never became interactable.
func NewFilterNotClickableError(filter string, cause error) *AppError {
	return NewAppError(ErrTypeFilterNotClickable, fmt.Sprintf("filter %q is not clickable", filter), cause).
		WithContext("filter", filter)
}

// NewConfirmNotClickableError reports a confirm control that never became interactable.
func NewConfirmNotClickableError(scope string, cause error) *AppError {
	return NewAppError(ErrTypeConfirmNotClickable, fmt.Sprintf("confirm control for %s is not clickable", scope), cause).
		WithContext("scope", scope)
}

// NewDownloadTimeoutError reports that no completed export appeared in dir.
func NewDownloadTimeoutError(dir string, cause error) *AppError {
	return NewAppError(ErrTypeDownloadTimeout, fmt.Sprintf("no completed download appeared in %s", dir), cause).
		WithContext("directory", dir)
}

// NewSchemaMismatchError reports a raw table whose shape does not match the canonical schema.
func NewSchemaMismatchError(got, want int) *AppError {
	return NewAppError(ErrTypeSchemaMismatch,
		fmt.Sprintf("column count %d does not match canonical schema column count %d", got, want), nil).
		WithContext("got", got).
		WithContext("want", want)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewConnectionError creates a database or tunnel connectivity error
func NewConnectionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConnection, message, cause)
}

// NewLoadError creates an error for a failed insert into the store
func NewLoadError(message string, cause error) *AppError {
	return NewAppError(ErrTypeLoad, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewBrowserError wraps a failure reported by the browser backend itself.
func NewBrowserError(message string, cause error) *AppError {
	return NewAppError(ErrTypeBrowser, message, cause)
}
