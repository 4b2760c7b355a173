package commands

import (
	"fmt"

	"github.com/dyluth/moot/internal/printer"
	"github.com/dyluth/moot/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new moot project",
	Long: `Initialize a new moot project in the current directory.

Creates:
  • moot.yml - Project configuration file
  • agent.sh - Example agent command (replace with your model CLI)
  • datasets/ - Example dataset files

Use --force to reinitialize an existing project (WARNING: overwrites existing configuration).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Force reinitialization (overwrites existing moot.yml and datasets/)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Project initialized\n")
	printer.Info("Next steps:\n")
	printer.Info("  1. Point datasets/dataset1.json and dataset2.json at your data\n")
	printer.Info("  2. Replace agent.sh with a call to your model CLI\n")
	printer.Info("  3. Run: moot run\n")
	return nil
}
