package commands

import (
	"fmt"

	"github.com/dyluth/moot/internal/config"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moot",
	Short: "Moot - multi-agent dataset reconciliation",
	Long: `Moot reconciles two datasets into a shared knowledge graph using a
panel of analyst personas that debate in phases: conference, graph
building, assignment, and analysis.

Session state lives on a Redis blackboard, so a running session can be
watched, paused, and reported on from other terminals.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "moot.yml", "Path to the moot configuration file")
}

// loadConfig loads the configured moot.yml.
func loadConfig() (*config.MootConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
	}
	return cfg, nil
}

// connect dials the blackboard for the configured instance.
func connect(cfg *config.MootConfig) (*blackboard.Client, error) {
	client, err := blackboard.NewClient(&redis.Options{Addr: cfg.Redis.Addr}, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create blackboard client: %w", err)
	}
	return client, nil
}
