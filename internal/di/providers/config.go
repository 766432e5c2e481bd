// Package providers contains dependency injection providers for the notes client.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/tenantnotes/notes-client/internal/config"
	"github.com/tenantnotes/notes-client/internal/logger"
)

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.Logger.Level == "debug",
		Environment: cfg.App.Environment,
	})

	log.Debug("Starting notes client",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"api_url", cfg.API.BaseURL,
		"session_backend", cfg.Session.Backend,
	)

	return log, nil
}
