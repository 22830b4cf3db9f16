package worktree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindGitRoot(t *testing.T) {
	t.Run("finds root from nested directory", func(t *testing.T) {
		root := t.TempDir()
		if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
			t.Fatal(err)
		}
		nested := filepath.Join(root, "a", "b", "c")
		if err := os.MkdirAll(nested, 0o755); err != nil {
			t.Fatal(err)
		}

		got, err := FindGitRoot(nested)
		if err != nil {
			t.Fatalf("FindGitRoot() error = %v", err)
		}
		if got != root {
			t.Errorf("FindGitRoot() = %q, want %q", got, root)
		}
	})

	t.Run("accepts .git file for linked worktrees", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: /elsewhere\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := FindGitRoot(root)
		if err != nil {
			t.Fatalf("FindGitRoot() error = %v", err)
		}
		if got != root {
			t.Errorf("FindGitRoot() = %q, want %q", got, root)
		}
	})

	t.Run("errors outside a repository", func(t *testing.T) {
		if _, err := FindGitRoot(t.TempDir()); err == nil {
			t.Error("FindGitRoot() expected error outside a repository")
		}
	})
}

func TestParseWorktreeList(t *testing.T) {
	out := strings.Join([]string{
		"worktree /repo",
		"HEAD abc123",
		"branch refs/heads/main",
		"",
		"worktree /repo/.stride/worktrees/task-1",
		"HEAD def456",
		"branch refs/heads/stride/task-1",
		"",
	}, "\n")

	got := parseWorktreeList(out)
	want := []string{"/repo", "/repo/.stride/worktrees/task-1"}
	if len(got) != len(want) {
		t.Fatalf("parseWorktreeList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parseWorktreeList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", maxOutputLen+100)
	got := truncateOutput(long, maxOutputLen)
	if len(got) != maxOutputLen+3 {
		t.Errorf("truncateOutput() length = %d, want %d", len(got), maxOutputLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncateOutput() should end with ellipsis")
	}

	short := "ok"
	if truncateOutput(short, maxOutputLen) != short {
		t.Error("truncateOutput() should leave short output unchanged")
	}
}

func TestMergeConflictError(t *testing.T) {
	err := &MergeConflictError{
		Branch: "stride/task-2",
		Files:  []string{"main.go", "go.mod"},
	}
	msg := err.Error()
	if !strings.Contains(msg, "stride/task-2") || !strings.Contains(msg, "2 file(s)") {
		t.Errorf("unexpected message: %q", msg)
	}
}
