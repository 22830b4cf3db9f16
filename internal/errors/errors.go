// Package errors provides centralized error definitions and error handling
// utilities for the Stride codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// Structural problems found during analysis (cycles, self-dependencies) are
// reported as data in the analysis result, never as errors. The types here
// cover the isolation layer, where operations against git and the filesystem
// can genuinely fail:
//
//   - GitError: a git command failed; carries the operation name, exit
//     status, and captured output
//   - CapacityError: the worktree concurrency cap would be exceeded
//   - NotFoundError / AlreadyExistsError: resource lookups and collisions
//   - ValidationError: invalid input or state, rejected before any
//     external operation is attempted
//   - TimeoutError: an external operation exceeded its deadline
//
// Checking errors:
//
//	if errors.IsCapacity(err) { ... back off ... }
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) { log(gitErr.Output) }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// StrideError is the base interface for all Stride errors. It extends the
// standard error interface with classification methods.
type StrideError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// Is checks if the underlying cause matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Git Errors
// -----------------------------------------------------------------------------

// GitError represents a failed git operation. It carries the failing
// operation name, the process exit status, and the captured command output
// so callers can retry or clean up manually.
//
// Example:
//
//	err := errors.NewGitError("worktree add", cause).
//		WithBranch("stride/task-1").
//		WithExitCode(128).
//		WithOutput(out)
type GitError struct {
	baseError
	Operation string // git subcommand, e.g. "worktree add", "merge"
	Branch    string
	Worktree  string
	ExitCode  int    // -1 when the process did not run or was killed
	Output    string // captured combined output
}

// NewGitError creates a new GitError for the given operation.
func NewGitError(operation string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message: fmt.Sprintf("git %s failed", operation),
			cause:   cause,
		},
		Operation: operation,
		ExitCode:  -1,
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithExitCode records the process exit status.
func (e *GitError) WithExitCode(code int) *GitError {
	e.ExitCode = code
	return e
}

// WithOutput adds captured git command output to the error context.
func (e *GitError) WithOutput(output string) *GitError {
	e.Output = strings.TrimSpace(output)
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *GitError) WithRetryable(r bool) *GitError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}

	prefix := fmt.Sprintf("git %s", e.Operation)
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}

	msg := "failed"
	if e.cause != nil {
		msg = fmt.Sprintf("failed: %v", e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.Output)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Capacity Errors
// -----------------------------------------------------------------------------

// CapacityError indicates the worktree concurrency cap would be exceeded.
// It is raised synchronously at the allocation call site; callers must retry
// later or shed load — there is no queueing.
type CapacityError struct {
	baseError
	Limit  int
	Active int
}

// NewCapacityError creates a new CapacityError.
func NewCapacityError(limit, active int) *CapacityError {
	return &CapacityError{
		baseError: baseError{
			message:   fmt.Sprintf("worktree capacity exceeded: %d active of %d allowed", active, limit),
			retryable: true,
		},
		Limit:  limit,
		Active: active,
	}
}

// Is checks if this error matches the target.
func (e *CapacityError) Is(target error) bool {
	if _, ok := target.(*CapacityError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError indicates a requested resource does not exist.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s not found: %s", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError indicates a resource collision, e.g. a duplicate task
// id or branch name. Collisions are rejected before any external operation
// is attempted.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message: fmt.Sprintf("%s already exists: %s", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError indicates invalid input or state.
type ValidationError struct {
	baseError
	Field string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{message: message},
	}
}

// WithField adds the offending field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed [field=%s]: %s", e.Field, e.baseError.Error())
	}
	return fmt.Sprintf("validation failed: %s", e.baseError.Error())
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError indicates an external operation exceeded its deadline.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   fmt.Sprintf("operation %q timed out after %v", operation, duration),
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	var se StrideError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return false
}

// IsCapacity returns true if the error is a CapacityError.
func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsAlreadyExists returns true if the error is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return errors.As(err, &ae)
}

// IsTimeout returns true if the error is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Compile-time interface checks.
var (
	_ StrideError = (*GitError)(nil)
	_ StrideError = (*CapacityError)(nil)
	_ StrideError = (*NotFoundError)(nil)
	_ StrideError = (*AlreadyExistsError)(nil)
	_ StrideError = (*ValidationError)(nil)
	_ StrideError = (*TimeoutError)(nil)
)
