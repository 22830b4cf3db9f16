package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestGitError(t *testing.T) {
	t.Run("formats context fields", func(t *testing.T) {
		err := NewGitError("worktree add", New("exit status 128")).
			WithBranch("stride/task-1").
			WithWorktree("/tmp/wt/task-1").
			WithExitCode(128).
			WithOutput("fatal: invalid reference\n")

		msg := err.Error()
		for _, want := range []string{"git worktree add", "exit=128", "branch=stride/task-1", "worktree=/tmp/wt/task-1", "fatal: invalid reference"} {
			if !strings.Contains(msg, want) {
				t.Errorf("error message %q missing %q", msg, want)
			}
		}
	})

	t.Run("matches via errors.Is and errors.As", func(t *testing.T) {
		err := fmt.Errorf("create failed: %w", NewGitError("branch", nil))

		var gitErr *GitError
		if !As(err, &gitErr) {
			t.Fatal("expected errors.As to find GitError")
		}
		if gitErr.Operation != "branch" {
			t.Errorf("Operation = %q, want %q", gitErr.Operation, "branch")
		}
	})
}

func TestCapacityError(t *testing.T) {
	err := NewCapacityError(10, 10)

	if !IsCapacity(err) {
		t.Error("IsCapacity should be true")
	}
	if !IsRetryable(err) {
		t.Error("capacity errors are retryable")
	}
	if !strings.Contains(err.Error(), "10 active of 10 allowed") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := fmt.Errorf("allocation: %w", err)
	if !IsCapacity(wrapped) {
		t.Error("IsCapacity should see through wrapping")
	}
}

func TestSemanticErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := NewNotFoundError("worktree", "wt-123")
		if !IsNotFound(err) {
			t.Error("IsNotFound should be true")
		}
		if IsCapacity(err) {
			t.Error("IsCapacity should be false")
		}
	})

	t.Run("already exists", func(t *testing.T) {
		err := NewAlreadyExistsError("branch", "stride/task-1")
		if !IsAlreadyExists(err) {
			t.Error("IsAlreadyExists should be true")
		}
		if IsRetryable(err) {
			t.Error("collisions are not retryable")
		}
	})

	t.Run("validation with field", func(t *testing.T) {
		err := NewValidationError("task id must not be empty").WithField("task_id")
		if !strings.Contains(err.Error(), "field=task_id") {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("timeout", func(t *testing.T) {
		err := NewTimeoutError("git merge", 30*time.Second)
		if !IsTimeout(err) {
			t.Error("IsTimeout should be true")
		}
		if !IsRetryable(err) {
			t.Error("timeouts are retryable")
		}
	})
}

func TestIsRetryableNonStrideError(t *testing.T) {
	if IsRetryable(New("plain error")) {
		t.Error("plain errors are not retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}
