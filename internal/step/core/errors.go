package core

import "fmt"

// ConfigurationError means a required executable parameter is missing.
type ConfigurationError struct {
	Param string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required parameter %s", e.Param)
}

// ResolutionError means the configured job could not be turned into a submission.
type ResolutionError struct {
	Job string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve job %q: %v", e.Job, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// BackendError wraps a failed call to the compute backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// InterruptedError means the wait between two polls was cut short.
type InterruptedError struct {
	Err error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted while waiting for next poll: %v", e.Err)
}

func (e *InterruptedError) Unwrap() error {
	return e.Err
}
