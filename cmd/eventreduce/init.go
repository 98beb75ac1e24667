package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eventreduce/internal/config"
	"github.com/vango-dev/eventreduce/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		asJSON bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write eventreduce.yaml with default settings.

Examples:
  eventreduce init
  eventreduce init ./service --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, asJSON, force)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write eventreduce.json instead of YAML")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func runInit(dir string, asJSON, force bool) error {
	if config.Exists(dir) && !force {
		return errors.New("E140").
			WithDetail("A config file already exists in " + dir).
			WithSuggestion("Pass --force to overwrite it")
	}

	name := config.ConfigFileName
	if asJSON {
		name = config.JSONConfigFileName
	}
	path := filepath.Join(dir, name)

	if err := config.New().SaveTo(path); err != nil {
		return err
	}
	success("Wrote %s", path)
	return nil
}
