package task

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/stride-dev/stride/internal/errors"
)

// taskFile is the on-disk shape of a task list.
type taskFile struct {
	Tasks []taskEntry `yaml:"tasks"`
}

// taskEntry mirrors Task with a string duration ("30s", "5m") so task
// files stay human-editable.
type taskEntry struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Completed   bool     `yaml:"completed"`
	DependsOn   []string `yaml:"depends_on"`
	Resources   []string `yaml:"resources"`
	Duration    string   `yaml:"duration"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// LoadFile reads a YAML task list from path.
func LoadFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	tasks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

// Parse decodes a YAML task list. Every task needs an id; ids must be
// unique within the file.
func Parse(data []byte) ([]Task, error) {
	var file taskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}

	seen := make(map[string]bool, len(file.Tasks))
	tasks := make([]Task, 0, len(file.Tasks))
	for i, entry := range file.Tasks {
		if entry.ID == "" {
			return nil, errs.NewValidationError(
				fmt.Sprintf("task %d has no id", i)).WithField("id")
		}
		if seen[entry.ID] {
			return nil, errs.NewValidationError(
				fmt.Sprintf("duplicate task id %q", entry.ID)).WithField("id")
		}
		seen[entry.ID] = true

		t := Task{
			ID:          entry.ID,
			Description: entry.Description,
			Completed:   entry.Completed,
			DependsOn:   entry.DependsOn,
			Resources:   entry.Resources,
			Priority:    entry.Priority,
			Tags:        entry.Tags,
		}
		if entry.Duration != "" {
			d, err := time.ParseDuration(entry.Duration)
			if err != nil {
				return nil, errs.NewValidationError(
					fmt.Sprintf("task %q: bad duration %q", entry.ID, entry.Duration)).WithField("duration")
			}
			t.EstimatedDuration = d
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
