// Package errs defines the error codes a run can end with and maps them
// to process exit statuses.
package errs

import "errors"

type Code string

const (
	InvalidArgument     Code = "invalid_argument"
	LivenessCheckFailed Code = "liveness_check_failed"
	RecoveryFailed      Code = "recovery_failed"
	ActionFailed        Code = "action_failed"
	ExhaustedRetries    Code = "exhausted_retries"
	Canceled            Code = "canceled"
	Internal            Code = "internal"
)

// Error attaches a code and an operator-facing message to a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Coder lets error types outside this package report a code.
type Coder interface {
	Code() Code
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf returns the first code found walking the chain outward in, or
// Internal.
func CodeOf(err error) Code {
	for ; err != nil; err = errors.Unwrap(err) {
		var code Code
		switch e := err.(type) {
		case *Error:
			code = e.Code
		case Coder:
			code = e.Code()
		}
		if code != "" {
			return code
		}
	}
	return Internal
}

// ExitCode is the process status for a run that ended with code.
func ExitCode(code Code) int {
	switch code {
	case InvalidArgument:
		return 2
	case ExhaustedRetries, ActionFailed:
		return 3
	case RecoveryFailed, LivenessCheckFailed:
		return 4
	case Canceled:
		return 130
	default:
		return 1
	}
}
