// Package errors defines the error taxonomy shared by the layout resolver,
// the type tree algorithms and the surrounding tooling.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeInternal           = "INTERNAL"
	CodeUnimplemented      = "UNIMPLEMENTED"
	CodeFailedPrecondition = "FAILED_PRECONDITION"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeStorageError       = "STORAGE_ERROR"
	CodeCacheError         = "CACHE_ERROR"
	CodeParseError         = "PARSE_ERROR"
	CodeConfigError        = "CONFIG_ERROR"
)

// AppError represents an error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFoundf returns a NOT_FOUND error with a formatted message.
func NotFoundf(format string, args ...interface{}) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgumentf returns an INVALID_ARGUMENT error with a formatted message.
func InvalidArgumentf(format string, args ...interface{}) *AppError {
	return New(CodeInvalidArgument, fmt.Sprintf(format, args...))
}

// Internalf returns an INTERNAL error with a formatted message.
func Internalf(format string, args ...interface{}) *AppError {
	return New(CodeInternal, fmt.Sprintf(format, args...))
}

// Unimplementedf returns an UNIMPLEMENTED error with a formatted message.
func Unimplementedf(format string, args ...interface{}) *AppError {
	return New(CodeUnimplemented, fmt.Sprintf(format, args...))
}

// FailedPreconditionf returns a FAILED_PRECONDITION error with a formatted message.
func FailedPreconditionf(format string, args ...interface{}) *AppError {
	return New(CodeFailedPrecondition, fmt.Sprintf(format, args...))
}

// Common error instances, used as errors.Is targets.
var (
	ErrNotFound           = New(CodeNotFound, "not found")
	ErrInvalidArgument    = New(CodeInvalidArgument, "invalid argument")
	ErrInternal           = New(CodeInternal, "internal error")
	ErrUnimplemented      = New(CodeUnimplemented, "unimplemented")
	ErrFailedPrecondition = New(CodeFailedPrecondition, "failed precondition")
	ErrDatabaseError      = New(CodeDatabaseError, "database error")
	ErrStorageError       = New(CodeStorageError, "storage error")
	ErrCacheError         = New(CodeCacheError, "cache error")
	ErrParseError         = New(CodeParseError, "parse error")
	ErrConfigError        = New(CodeConfigError, "configuration error")
)

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArgument checks if the error is an invalid-argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsInternal checks if the error is an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsUnimplemented checks if the error is an unimplemented error.
func IsUnimplemented(err error) bool {
	return errors.Is(err, ErrUnimplemented)
}

// IsFailedPrecondition checks if the error is a failed-precondition error.
func IsFailedPrecondition(err error) bool {
	return errors.Is(err, ErrFailedPrecondition)
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
