package providers

import (
	"github.com/samber/do/v2"

	"github.com/tenantnotes/notes-client/internal/api"
	"github.com/tenantnotes/notes-client/internal/config"
	"github.com/tenantnotes/notes-client/internal/logger"
	"github.com/tenantnotes/notes-client/internal/ratelimit"
	"github.com/tenantnotes/notes-client/internal/session"
)

// ProvideCredentials provides the token holder shared by the API client and the session.
func ProvideCredentials(_ do.Injector) (*session.Credentials, error) {
	return session.NewCredentials(), nil
}

// ProvideRateLimiter provides the per-intent outbound throttle.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.API.RPS, cfg.API.Burst), nil
}

// ProvideAPIClient provides the HTTP client for the notes API.
func ProvideAPIClient(i do.Injector) (*api.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	creds := do.MustInvoke[*session.Credentials](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	return api.New(api.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		PageLimit:         cfg.Notes.PageLimit,
		ReadRetryAttempts: cfg.API.ReadRetryAttempts,
		Limiter:           limiter,
		Logger:            log.Component("api"),
	}, creds), nil
}
