package main

import (
	"fmt"
	"time"

	"github.com/gabrielmiguelok/formwizard/internal/config"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/state"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

func buildLogger(cfg config.Config, verbose bool) (logging.Logger, func(), error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	if cfg.LogFormat == "zap" {
		zl, err := logging.NewProductionZap(level == "debug")
		if err != nil {
			return nil, nil, err
		}
		return zl, func() { _ = zl.Sync() }, nil
	}

	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	opts := []logging.LoggerOption{logging.WithLevel(lvl)}
	if cfg.LogFormat == "json" {
		opts = append(opts, logging.WithJSON())
	}
	return logging.NewSlogLogger(opts...), func() {}, nil
}

func openStore(cfg config.Config) (state.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := state.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		return store, nil
	default:
		return state.NewMemoryStore(), nil
	}
}

func loadDefinition(cfg config.Config) (*wizard.Definition, error) {
	if cfg.DefinitionPath == "" {
		return wizard.DefaultDefinition(), nil
	}
	return wizard.LoadDefinition(cfg.DefinitionPath)
}

// buildSubmitter returns the webhook behind a circuit breaker when a URL is
// configured, otherwise a submitter that only logs. The breaker is nil in
// the second case.
func buildSubmitter(cfg config.Config, logger logging.Logger) (wizard.Submitter, *wizard.CircuitSubmitter) {
	if cfg.WebhookURL == "" {
		return wizard.LogSubmitter{Logger: logger}, nil
	}
	breaker := wizard.NewCircuitSubmitter(
		wizard.NewWebhookSubmitter(cfg.WebhookURL, cfg.WebhookTimeout),
		wizard.BreakerConfig{
			MaxErrors:    5,
			ResetTimeout: 30 * time.Second,
			OnStateChange: func(from, to wizard.CircuitState) {
				logger.Warn("submission circuit changed",
					logging.String("from", from.String()),
					logging.String("to", to.String()),
				)
			},
		},
	)
	return breaker, breaker
}
