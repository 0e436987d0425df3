package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create a starter hri.yml",
	Long: `Create a starter hri.yml in DIR (default: the current directory).

The starter configuration has a greeting, a fetch request with an
acknowledgement and availability check, a reasoning question backed by a
static backend and a presence handler.

Use --force to overwrite an existing hri.yml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing hri.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	dir = filepath.Clean(dir)

	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return err
		}
	}

	printer.Step("Writing %s\n", filepath.Join(dir, scaffold.ConfigFile))
	if err := scaffold.Initialize(dir, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
