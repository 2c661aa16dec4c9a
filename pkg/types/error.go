// pkg/types/error.go
package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so callers can branch on the category
// without parsing messages.
type ErrorCode string

const (
	// CodeConfiguration covers malformed or missing persisted documents and
	// dangling id references discovered while loading them.
	CodeConfiguration ErrorCode = "CONFIGURATION"
	// CodeDetection covers probe and matcher failures. These are absorbed
	// into a not-found detection result at the element layer and should
	// never reach a workflow.
	CodeDetection ErrorCode = "DETECTION"
	// CodeCondition covers condition evaluation failures, including those
	// propagated through composite conditions.
	CodeCondition ErrorCode = "CONDITION"
	// CodeStep covers steps that exhausted their retries or timeout.
	CodeStep ErrorCode = "STEP"
	// CodeNavigation covers missing transition edges, invisible click
	// targets and confirmation timeouts.
	CodeNavigation ErrorCode = "NAVIGATION"
)

// Error is a coded error. It wraps an optional cause so errors.Is and
// errors.As keep working through it.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given code and a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error with the given code, message and cause.
func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the error code from err or any error it wraps. It returns
// the empty code for nil and for uncoded errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code at any wrapping depth.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
