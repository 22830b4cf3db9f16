// Package task defines the task model shared by the dependency graph,
// the analyzer, and the isolation coordinator.
//
// A Task is a fixed, tagged structure rather than an open-ended map.
// Absent fields fall back to documented defaults: a task with no estimated
// duration is assumed to take DefaultDuration.
package task

import (
	"time"

	"github.com/gobwas/glob"
)

// DefaultDuration is assumed for tasks that carry no duration estimate.
const DefaultDuration = 5 * time.Second

// Task is a unit of work with an id, optional dependencies, and optional
// shared-resource annotations.
type Task struct {
	// ID uniquely identifies the task within a plan.
	ID string `yaml:"id" json:"id"`

	// Description is a human-readable summary of the work.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Completed marks tasks that have already finished.
	Completed bool `yaml:"completed,omitempty" json:"completed,omitempty"`

	// DependsOn lists the IDs of tasks that must complete first.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Resources names the shared resources this task touches (files,
	// logical resource names). Entries may be glob patterns, e.g. "src/**".
	Resources []string `yaml:"resources,omitempty" json:"resources,omitempty"`

	// EstimatedDuration is how long the task is expected to take.
	// Zero means unspecified; Duration() applies the default.
	EstimatedDuration time.Duration `yaml:"-" json:"estimated_duration,omitempty"`

	// Priority is derived from analysis, not authoritative input.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Tags carries free-form labels for the external tool layer.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Duration returns the estimated duration, applying DefaultDuration when
// the task carries no estimate.
func (t Task) Duration() time.Duration {
	if t.EstimatedDuration <= 0 {
		return DefaultDuration
	}
	return t.EstimatedDuration
}

// IsIndependent returns true if the task has no dependencies.
func (t Task) IsIndependent() bool {
	return len(t.DependsOn) == 0
}

// ResourceOverlap returns the resources shared between a and b.
// Two resource identifiers overlap when they are equal or when either,
// interpreted as a glob pattern, matches the other. Invalid patterns are
// compared literally.
func ResourceOverlap(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	var shared []string
	seen := make(map[string]bool)
	for _, ra := range a {
		for _, rb := range b {
			if !resourcesMatch(ra, rb) {
				continue
			}
			// Report the more specific identifier once.
			id := ra
			if len(rb) > len(ra) {
				id = rb
			}
			if !seen[id] {
				seen[id] = true
				shared = append(shared, id)
			}
		}
	}
	return shared
}

// resourcesMatch reports whether two resource identifiers refer to
// overlapping resources.
func resourcesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if g, err := glob.Compile(a, '/'); err == nil && g.Match(b) {
		return true
	}
	if g, err := glob.Compile(b, '/'); err == nil && g.Match(a) {
		return true
	}
	return false
}
