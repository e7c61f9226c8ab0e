package solarroof

import (
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code string

const (
	ErrCodeConfigOutOfRange Code = "CONFIG_OUT_OF_RANGE"
	ErrCodeInvalidFace      Code = "INVALID_FACE"
	ErrCodeInvalidObstacle  Code = "INVALID_OBSTACLE"
	ErrCodeUnknownObstacle  Code = "UNKNOWN_OBSTACLE"
	ErrCodeInvalidScene     Code = "INVALID_SCENE"
)

// Error is the error type returned by the planner and the geometry
// constructors.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewSceneError returns an ErrCodeInvalidScene error. Front ends use it
// to report malformed scene descriptions.
func NewSceneError(cause error, format string, args ...any) error {
	return wrapError(cause, ErrCodeInvalidScene, format, args...)
}

// Is reports whether any error in err's chain is an *Error with the
// given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
