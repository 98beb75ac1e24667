package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eventreduce/internal/demo"
	"github.com/vango-dev/eventreduce/internal/errors"
)

func demoCmd(configPath *string) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the counter scenario",
		Long: `Run a scripted counter session and print every render.

With --verbose the engine's debug records (recomputes, reductions,
watcher runs and render source trees) are written to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if verbose {
				cfg.Engine.LogLevel = "debug"
			}
			restore, err := cfg.Apply(os.Stderr)
			if err != nil {
				return err
			}
			defer restore()

			res, err := demo.Run(cmd.OutOrStdout(), nil)
			if err != nil {
				return errors.FromEngine(err)
			}
			success("%d renders, final state %v", res.Renders, res.Values)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine debug records")

	return cmd
}
