package conflict

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, ignore ...string) *Watcher {
	t.Helper()
	w, err := NewWatcher(nil, ignore)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("change\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// waitForOverlaps polls until the watcher reports n overlaps or times out.
func waitForOverlaps(t *testing.T, w *Watcher, n int) []Overlap {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := w.Overlaps(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d overlap(s), have %v", n, w.Overlaps())
	return nil
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	w.Stop()
	w.Stop()
	w.Stop()
}

func TestWatcherDetectsOverlap(t *testing.T) {
	w := newTestWatcher(t)

	wt1 := t.TempDir()
	wt2 := t.TempDir()
	if err := w.Watch("task-1", wt1); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch("task-2", wt2); err != nil {
		t.Fatal(err)
	}
	w.Start()

	writeFile(t, filepath.Join(wt1, "shared.go"))
	writeFile(t, filepath.Join(wt2, "shared.go"))

	overlaps := waitForOverlaps(t, w, 1)
	if overlaps[0].RelativePath != "shared.go" {
		t.Errorf("RelativePath = %q, want shared.go", overlaps[0].RelativePath)
	}
	// TaskIDs come back sorted regardless of write arrival order.
	want := []string{"task-1", "task-2"}
	if !reflect.DeepEqual(overlaps[0].TaskIDs, want) {
		t.Errorf("TaskIDs = %v, want %v", overlaps[0].TaskIDs, want)
	}
}

func TestWatcherNoOverlapForDistinctFiles(t *testing.T) {
	w := newTestWatcher(t)

	wt1 := t.TempDir()
	wt2 := t.TempDir()
	if err := w.Watch("task-1", wt1); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch("task-2", wt2); err != nil {
		t.Fatal(err)
	}
	w.Start()

	writeFile(t, filepath.Join(wt1, "one.go"))
	writeFile(t, filepath.Join(wt2, "two.go"))

	time.Sleep(300 * time.Millisecond)
	if got := w.Overlaps(); len(got) != 0 {
		t.Errorf("Overlaps() = %v, want none", got)
	}
}

func TestWatcherIgnoresPatterns(t *testing.T) {
	w := newTestWatcher(t, "*.log")

	wt1 := t.TempDir()
	wt2 := t.TempDir()
	if err := w.Watch("task-1", wt1); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch("task-2", wt2); err != nil {
		t.Fatal(err)
	}
	w.Start()

	writeFile(t, filepath.Join(wt1, "build.log"))
	writeFile(t, filepath.Join(wt2, "build.log"))

	time.Sleep(300 * time.Millisecond)
	if got := w.Overlaps(); len(got) != 0 {
		t.Errorf("Overlaps() = %v, want none for ignored pattern", got)
	}
}

func TestWatcherUnwatchClearsOverlaps(t *testing.T) {
	w := newTestWatcher(t)

	wt1 := t.TempDir()
	wt2 := t.TempDir()
	if err := w.Watch("task-1", wt1); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch("task-2", wt2); err != nil {
		t.Fatal(err)
	}
	w.Start()

	writeFile(t, filepath.Join(wt1, "shared.go"))
	writeFile(t, filepath.Join(wt2, "shared.go"))
	waitForOverlaps(t, w, 1)

	w.Unwatch("task-2")
	if got := w.Overlaps(); len(got) != 0 {
		t.Errorf("Overlaps() after Unwatch = %v, want none", got)
	}
}

func TestIgnoredMatchesComponents(t *testing.T) {
	w := newTestWatcher(t, "vendor/**")

	tests := []struct {
		rel  string
		want bool
	}{
		{".git/HEAD", true},
		{"src/.git", true},
		{"vendor/lib/lib.go", true},
		{"src/main.go", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := w.ignored(tt.rel); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}
