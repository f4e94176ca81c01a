package api

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is returned when a request is rejected before any side effect,
// for example an unsupported launch mode or a failed configuration check.
type ValidationError struct {
	// Server is the name of the server the request was made against.
	Server string

	// Reason describes what failed validation.
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Server == "" {
		return e.Reason
	}
	return fmt.Sprintf("server %s: %s", e.Server, e.Reason)
}

// NewValidationError creates a ValidationError for the given server.
//
// Example:
//
//	return api.NewValidationError("tomcat", "server may not be launched in mode %s", mode)
func NewValidationError(server, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Server: server, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation checks if an error is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// LaunchError reports that creating or terminating the external server process failed.
type LaunchError struct {
	// Op is the launcher operation, "start" or "stop".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for LaunchError.
// The message is the cause's message so that clients see e.g. "port in use" verbatim.
func (e *LaunchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s launch failed", e.Op)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NewLaunchError wraps err as a LaunchError for the given operation.
func NewLaunchError(op string, err error) *LaunchError {
	return &LaunchError{Op: op, Err: err}
}

// IsLaunch checks if an error is or wraps a LaunchError.
func IsLaunch(err error) bool {
	var l *LaunchError
	return errors.As(err, &l)
}

// PollTimeoutError reports that a poller did not observe its target state in time.
type PollTimeoutError struct {
	Server  string
	Target  PollTarget
	Timeout time.Duration
}

// Error implements the error interface for PollTimeoutError.
func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("server %s did not become %s within %s", e.Server, e.Target, e.Timeout)
}

// IsPollTimeout checks if an error is or wraps a PollTimeoutError.
func IsPollTimeout(err error) bool {
	var p *PollTimeoutError
	return errors.As(err, &p)
}

// PublishError reports an unsupported artifact or an I/O failure while reconciling deployables.
type PublishError struct {
	// Deployable is the reference label; empty for cycle level failures.
	Deployable string

	// Op names the failed step (add, remove, copy, start, finish...).
	Op string

	Err error
}

// Error implements the error interface for PublishError.
func (e *PublishError) Error() string {
	if e.Deployable == "" {
		return fmt.Sprintf("publish %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("publish %s of %s: %v", e.Op, e.Deployable, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PublishError) Unwrap() error {
	return e.Err
}

// NewPublishError creates a PublishError.
func NewPublishError(deployable, op string, err error) *PublishError {
	return &PublishError{Deployable: deployable, Op: op, Err: err}
}

// IsPublish checks if an error is or wraps a PublishError.
func IsPublish(err error) bool {
	var p *PublishError
	return errors.As(err, &p)
}

// InvalidStateError reports an operation requested in a lifecycle state that does not allow it.
type InvalidStateError struct {
	Server    string
	State     ServerState
	Operation string
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s server %s while it is %s", e.Operation, e.Server, e.State)
}

// IsInvalidState checks if an error is or wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var s *InvalidStateError
	return errors.As(err, &s)
}

// Common errors for lookups performed by the application layer.
var (
	// ErrServerNotFound is returned when a server name is not configured.
	ErrServerNotFound = errors.New("server not found")

	// ErrDeployableNotFound is returned when a deployable label is not registered.
	ErrDeployableNotFound = errors.New("deployable not found")
)
