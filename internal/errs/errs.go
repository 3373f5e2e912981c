// Package errs implements the engine's error taxonomy:
// one ErrorCode per raised condition, carried with enough structured
// detail for the Job Controller to decide whether a failure is
// per-image or run-fatal.
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one taxonomy entry in the engine's error model.
type ErrorCode string

const (
	CodeSettingsInvalid        ErrorCode = "SETTINGS_INVALID"
	CodeDecodeError            ErrorCode = "DECODE_ERROR"
	CodePlaneOutOfRange        ErrorCode = "PLANE_OUT_OF_RANGE"
	CodeTypeContractViolation  ErrorCode = "TYPE_CONTRACT_VIOLATION"
	CodeSegmentationFailed     ErrorCode = "SEGMENTATION_FAILED"
	CodeMeasurementFailed      ErrorCode = "MEASUREMENT_FAILED"
	CodeResultWriteFailed      ErrorCode = "RESULT_WRITE_FAILED"
	CodeCancelled              ErrorCode = "CANCELLED"
)

// fatal holds codes that abort the whole run rather than just the
// WorkUnit/image that raised them.
var fatal = map[ErrorCode]bool{
	CodeSettingsInvalid:   true,
	CodeResultWriteFailed: true,
}

// EngineError is the engine's error type: a code, a human message, a
// wrapped cause, and structured detail fields for diagnostics.
type EngineError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// New creates an EngineError with no wrapped cause.
func New(code ErrorCode, message string) *EngineError {
	return &EngineError{Code: code, Message: message, Details: map[string]interface{}{}}
}

// Wrap creates an EngineError wrapping err.
func Wrap(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{Code: code, Message: message, Err: err, Details: map[string]interface{}{}}
}

// WithDetail attaches a structured diagnostic field and returns e for chaining.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// Code extracts the ErrorCode from err, or "" if err is not an EngineError.
func Code(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// Is reports whether err is an EngineError with the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// IsFatal reports whether err should abort the whole run (vs. only the
// WorkUnit/image that raised it).
func IsFatal(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return fatal[ee.Code]
	}
	return false
}

// IsCancelled reports whether err represents cooperative cancellation,
// a terminal state rather than a failure.
func IsCancelled(err error) bool {
	return Is(err, CodeCancelled)
}
