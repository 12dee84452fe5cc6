package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/formwizard/internal/config"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	verbose bool
	envFile string

	cfg    config.Config
	logger logging.Logger
	sync   func()
}

func newRootCmd() *cobra.Command {
	a := &app{sync: func() {}}

	root := &cobra.Command{
		Use:           "formwizard",
		Short:         "Multi-step admission form wizard",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger, sync, err := buildLogger(cfg, a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger, a.sync = logger, sync
			logging.SetDefault(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.sync()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading WIZARD_* variables")

	root.AddCommand(newServeCmd(a), newFillCmd(a), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "formwizard %s\n", version)
			return err
		},
	}
}
