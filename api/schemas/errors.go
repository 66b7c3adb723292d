package schemas

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the operation failure taxonomy. Every adapter
// operation either returns a validated success value or wraps exactly one of
// these; nothing is swallowed.
var (
	// ErrSessionUnavailable: the browser process or page context could not be
	// established. Fatal for the call; the core never retries it.
	ErrSessionUnavailable = errors.New("browser session unavailable")

	// ErrAuthenticationRequired: no valid session for the platform identity.
	// The caller must trigger a login workflow.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrExtractionTimeout: the structural marker or embedded state never
	// appeared within the extraction wait. Safe for the caller to retry.
	ErrExtractionTimeout = errors.New("extraction timed out")

	// ErrExtractionFailed: the page rendered but neither embedded state nor
	// DOM traversal produced a usable result. Safe for the caller to retry.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrNotFound: the target resource does not exist or is not accessible
	// from this identity. Not retried.
	ErrNotFound = errors.New("resource not found")

	// ErrStorageUnavailable: the session store could not be read or written.
	ErrStorageUnavailable = errors.New("session storage unavailable")

	// ErrCorruptState: a persisted session state failed to decode. Callers
	// treat this as not-found, forcing a fresh login.
	ErrCorruptState = errors.New("corrupt session state")
)

// WorkflowError reports how far a write workflow progressed before failing.
// Partial writes cannot be rolled back from the UI side, so the step index
// and reason are the caller's only handle on what already happened.
type WorkflowError struct {
	Workflow  string
	StepIndex int
	Step      string
	Reason    string
	Err       error
}

func (e *WorkflowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow %q failed at step %d (%s): %s: %v",
			e.Workflow, e.StepIndex, e.Step, e.Reason, e.Err)
	}
	return fmt.Sprintf("workflow %q failed at step %d (%s): %s",
		e.Workflow, e.StepIndex, e.Step, e.Reason)
}

func (e *WorkflowError) Unwrap() error { return e.Err }
