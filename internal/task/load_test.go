package task

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("full task list", func(t *testing.T) {
		data := []byte(`
tasks:
  - id: build-api
    description: Build the API layer
    depends_on: [schema]
    resources: ["src/api/**"]
    duration: 10m
    tags: [backend]
  - id: schema
    duration: 30s
`)
		tasks, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(tasks) != 2 {
			t.Fatalf("len(tasks) = %d, want 2", len(tasks))
		}
		got := tasks[0]
		if got.ID != "build-api" || got.Description != "Build the API layer" {
			t.Errorf("unexpected task: %+v", got)
		}
		if got.EstimatedDuration != 10*time.Minute {
			t.Errorf("EstimatedDuration = %v, want 10m", got.EstimatedDuration)
		}
		if len(got.DependsOn) != 1 || got.DependsOn[0] != "schema" {
			t.Errorf("DependsOn = %v, want [schema]", got.DependsOn)
		}
	})

	t.Run("missing duration defaults later", func(t *testing.T) {
		tasks, err := Parse([]byte("tasks:\n  - id: a\n"))
		if err != nil {
			t.Fatal(err)
		}
		if tasks[0].EstimatedDuration != 0 {
			t.Errorf("EstimatedDuration = %v, want 0", tasks[0].EstimatedDuration)
		}
		if tasks[0].Duration() != DefaultDuration {
			t.Errorf("Duration() = %v, want %v", tasks[0].Duration(), DefaultDuration)
		}
	})

	t.Run("rejects missing id", func(t *testing.T) {
		_, err := Parse([]byte("tasks:\n  - description: no id\n"))
		if err == nil || !strings.Contains(err.Error(), "no id") {
			t.Errorf("Parse() error = %v, want missing-id error", err)
		}
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := Parse([]byte("tasks:\n  - id: a\n  - id: a\n"))
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("Parse() error = %v, want duplicate-id error", err)
		}
	})

	t.Run("rejects bad duration", func(t *testing.T) {
		_, err := Parse([]byte("tasks:\n  - id: a\n    duration: fast\n"))
		if err == nil || !strings.Contains(err.Error(), "duration") {
			t.Errorf("Parse() error = %v, want duration error", err)
		}
	})

	t.Run("empty file yields no tasks", func(t *testing.T) {
		tasks, err := Parse([]byte(""))
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) != 0 {
			t.Errorf("len(tasks) = %d, want 0", len(tasks))
		}
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte("tasks:\n  - id: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "a" {
		t.Errorf("LoadFile() = %+v", tasks)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}
