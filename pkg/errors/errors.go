// Package errors defines common error types for the weaver.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for the application.
const (
	CodeUnknown               = "UNKNOWN_ERROR"
	CodeParseError            = "PARSE_ERROR"
	CodeInvalidPointcut       = "INVALID_POINTCUT"
	CodeResolutionError       = "RESOLUTION_ERROR"
	CodeUnknownPointcut       = "UNKNOWN_POINTCUT"
	CodeCircularReference     = "CIRCULAR_POINTCUT_REFERENCE"
	CodeAspectDefinitionError = "ASPECT_DEFINITION_ERROR"
	CodeIntroductionConflict  = "INTRODUCTION_CONFLICT"
	CodeVoidImplementation    = "VOID_IMPLEMENTATION"
	CodeUnknownExpression     = "UNKNOWN_EXPRESSION"
	CodeExpressionError       = "EXPRESSION_ERROR"
	CodeConfigError           = "CONFIG_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeDatabaseError         = "DATABASE_ERROR"
	CodeStorageError          = "STORAGE_ERROR"
)

// AppError represents an application error with a code and message.
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

// Is checks if the error matches the target.
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

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrParseError            = New(CodeParseError, "parse error")
	ErrInvalidPointcut       = New(CodeInvalidPointcut, "invalid pointcut")
	ErrResolutionError       = New(CodeResolutionError, "resolution error")
	ErrUnknownPointcut       = New(CodeUnknownPointcut, "unknown pointcut")
	ErrCircularReference     = New(CodeCircularReference, "circular pointcut reference")
	ErrAspectDefinitionError = New(CodeAspectDefinitionError, "invalid aspect definition")
	ErrIntroductionConflict  = New(CodeIntroductionConflict, "introduction conflict")
	ErrVoidImplementation    = New(CodeVoidImplementation, "void implementation")
	ErrUnknownExpression     = New(CodeUnknownExpression, "unknown runtime expression")
	ErrExpressionError       = New(CodeExpressionError, "runtime expression error")
	ErrConfigError           = New(CodeConfigError, "configuration error")
	ErrNotFound              = New(CodeNotFound, "resource not found")
	ErrDatabaseError         = New(CodeDatabaseError, "database error")
	ErrStorageError          = New(CodeStorageError, "storage error")
)

// ParenthesesError reports unbalanced parentheses in a pointcut expression.
// Exactly one of Excess or Missing is non-zero.
type ParenthesesError struct {
	Excess     int
	Missing    int
	Expression string
	SourceHint string
}

func (e *ParenthesesError) Error() string {
	var msg string
	if e.Excess > 0 {
		msg = fmt.Sprintf("%d closing parentheses too many", e.Excess)
	} else {
		msg = fmt.Sprintf("%d closing parentheses missing", e.Missing)
	}
	msg = fmt.Sprintf("%s in expression %q", msg, e.Expression)
	if e.SourceHint != "" {
		msg += " defined in " + e.SourceHint
	}
	return msg
}

// Balance returns the signed parenthesis balance: positive for excess
// closing parentheses, negative for missing ones.
func (e *ParenthesesError) Balance() int {
	return e.Excess - e.Missing
}

// CircularReferenceError is raised when a pointcut re-enters itself past the
// recursion ceiling within one matching pass.
type CircularReferenceError struct {
	AspectClassName    string
	PointcutMethodName string
	Level              int
}

func (e *CircularReferenceError) Error() string {
	name := e.AspectClassName
	if e.PointcutMethodName != "" {
		name += "->" + e.PointcutMethodName
	}
	return fmt.Sprintf("pointcut %s exceeded the maximum recursion level (%d)", name, e.Level)
}

// IntroductionConflictError names every aspect and interface that introduce
// the same method onto one target class.
type IntroductionConflictError struct {
	TargetClassName string
	MethodName      string
	Interfaces      []string
	Aspects         []string
}

func (e *IntroductionConflictError) Error() string {
	if e.MethodName == "" {
		return fmt.Sprintf("interface %s is introduced into %s by aspects %s",
			strings.Join(e.Interfaces, ", "), e.TargetClassName, strings.Join(e.Aspects, ", "))
	}
	return fmt.Sprintf("method %s is introduced into %s by interfaces %s (aspects %s)",
		e.MethodName, e.TargetClassName, strings.Join(e.Interfaces, ", "), strings.Join(e.Aspects, ", "))
}

// IsParseError checks if the error is a pointcut parse error.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParseError)
}

// IsResolutionError checks if the error is a resolution error.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrResolutionError)
}

// IsCircularReference checks if the error is a circular pointcut reference.
func IsCircularReference(err error) bool {
	return errors.Is(err, ErrCircularReference)
}

// IsAspectDefinitionError checks if the error reports an invalid aspect.
func IsAspectDefinitionError(err error) bool {
	return errors.Is(err, ErrAspectDefinitionError)
}

// IsIntroductionConflict checks if the error is an introduction conflict.
func IsIntroductionConflict(err error) bool {
	return errors.Is(err, ErrIntroductionConflict)
}

// IsVoidImplementation checks if the error is a void implementation error.
func IsVoidImplementation(err error) bool {
	return errors.Is(err, ErrVoidImplementation)
}

// IsUnknownExpression checks if the error reports an uncompiled runtime expression.
func IsUnknownExpression(err error) bool {
	return errors.Is(err, ErrUnknownExpression)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
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
