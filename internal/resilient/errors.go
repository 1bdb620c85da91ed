package resilient

import (
	"fmt"

	"github.com/kuitang/storefront-e2e/internal/errs"
)

// ActionError is a failure of the action itself on one attempt.
// Err is the action's error, unchanged.
type ActionError struct {
	Action  string
	Attempt int
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s (attempt %d): %v", e.Action, e.Attempt, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

func (e *ActionError) Code() errs.Code { return errs.ActionFailed }

// ExhaustedError is returned once every attempt has failed.
// Err is the failure of the last attempt: an *ActionError, or a
// recovery_failed error when the session could not be restored.
type ExhaustedError struct {
	Action   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Action, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Code() errs.Code { return errs.ExhaustedRetries }
