// Package config loads and validates Stride configuration via viper.
// Settings come from a YAML config file, environment variables with the
// STRIDE_ prefix, or defaults, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Stride configuration.
type Config struct {
	Isolation IsolationConfig `mapstructure:"isolation"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Conflict  ConflictConfig  `mapstructure:"conflict"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// IsolationConfig controls worktree allocation and consolidation.
type IsolationConfig struct {
	// MaxWorktrees caps how many worktrees may be live at once (default: 10).
	// Allocation beyond the cap fails fast; there is no queueing.
	MaxWorktrees int `mapstructure:"max_worktrees"`

	// BranchPrefix is prepended to task ids to form branch names
	// (default: "stride/").
	BranchPrefix string `mapstructure:"branch_prefix"`

	// WorktreeDir is the base directory for working copies. Empty means
	// a ".stride/worktrees" directory next to the repository.
	WorktreeDir string `mapstructure:"worktree_dir"`

	// RemoveBranches deletes a worktree's branch on destroy (default: true).
	RemoveBranches bool `mapstructure:"remove_branches"`

	// OperationTimeout bounds each external git operation (default: 2m).
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// AnalyzerConfig tunes the grouping policy.
type AnalyzerConfig struct {
	// ConflictPenalty is the confidence cost per conflict touching a group.
	ConflictPenalty float64 `mapstructure:"conflict_penalty"`

	// SizePenalty is the confidence cost per member beyond SizeThreshold.
	SizePenalty float64 `mapstructure:"size_penalty"`

	// SizeThreshold is the group size where size penalties start.
	SizeThreshold int `mapstructure:"size_threshold"`

	// MinConfidence floors the confidence score.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// ConflictConfig controls the live file-conflict watcher.
type ConflictConfig struct {
	// IgnorePatterns are glob patterns for paths the watcher skips.
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (default: INFO).
	Level string `mapstructure:"level"`

	// Dir is where log files are written. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// SetDefaults registers default values with viper. Call before reading
// the config file so defaults apply even when no file exists.
func SetDefaults() {
	viper.SetDefault("isolation.max_worktrees", 10)
	viper.SetDefault("isolation.branch_prefix", "stride/")
	viper.SetDefault("isolation.worktree_dir", "")
	viper.SetDefault("isolation.remove_branches", true)
	viper.SetDefault("isolation.operation_timeout", 2*time.Minute)

	viper.SetDefault("analyzer.conflict_penalty", 0.1)
	viper.SetDefault("analyzer.size_penalty", 0.05)
	viper.SetDefault("analyzer.size_threshold", 3)
	viper.SetDefault("analyzer.min_confidence", 0.2)

	viper.SetDefault("conflict.ignore_patterns", []string{".git/**", "node_modules/**", "**/.DS_Store"})

	viper.SetDefault("logging.level", "INFO")
	viper.SetDefault("logging.dir", "")
}

// Load unmarshals the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the directory where the stride config file lives,
// $XDG_CONFIG_HOME/stride or $HOME/.config/stride.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stride")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stride"
	}
	return filepath.Join(home, ".config", "stride")
}
