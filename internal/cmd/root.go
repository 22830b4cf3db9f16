// Package cmd wires the stride CLI together.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stride-dev/stride/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Parallel task execution planner",
	Long: `Stride analyzes a task list's dependency graph to find which tasks
can safely run in parallel, and manages git-worktree-backed working
copies so parallel tasks stay isolated until their work is merged back.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/stride/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/stride")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STRIDE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., STRIDE_ISOLATION_MAX_WORKTREES for isolation.max_worktrees
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
