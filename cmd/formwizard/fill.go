package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/formwizard/internal/config"
	"github.com/gabrielmiguelok/formwizard/internal/tui"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

func newFillCmd(a *app) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill the wizard from the terminal",
		Long: "Fill the wizard from the terminal. Progress is kept in the configured store, " +
			"so an interrupted session can be resumed with --session when WIZARD_STORE=sqlite.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			if a.cfg.Store == config.StoreMemory {
				a.logger.Warn("memory store in use; progress is lost when the command exits")
			}

			def, err := loadDefinition(a.cfg)
			if err != nil {
				return err
			}
			store, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			submitter, _ := buildSubmitter(a.cfg, a.logger)
			out := cmd.OutOrStdout()
			surface := tui.NewSurface(def, tui.NewSurveyDriver(), out)
			ctrl := wizard.NewController(sessionID, def, store, surface,
				wizard.WithSubmitter(submitter),
				wizard.WithLogger(a.logger),
				wizard.WithSessionTTL(a.cfg.SessionTTL),
			)
			ctrl.Bind(surface)

			ctx := cmd.Context()
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			err = surface.Fill(ctx)
			if errors.Is(err, tui.ErrAborted) {
				fmt.Fprintf(out, "Progress saved. Resume with: formwizard fill --session %s\n", sessionID)
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to resume; a new one is created when empty")
	return cmd
}
