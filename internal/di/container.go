// Package di provides dependency injection configuration for the notes client.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tenantnotes/notes-client/internal/api"
	"github.com/tenantnotes/notes-client/internal/config"
	"github.com/tenantnotes/notes-client/internal/di/providers"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/logger"
	"github.com/tenantnotes/notes-client/internal/ratelimit"
	"github.com/tenantnotes/notes-client/internal/session"
	"github.com/tenantnotes/notes-client/internal/store"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideTokenStore)

	// Transport layer
	do.Provide(injector, providers.ProvideCredentials)
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideAPIClient)

	// Client state
	do.Provide(injector, providers.ProvideEventBus)
	do.Provide(injector, providers.ProvideApp)

	return injector
}

// Bootstrap initializes all services and returns the wired client.
// This triggers lazy initialization, so a bad session path fails here.
func Bootstrap(injector *do.RootScope) (*providers.AppHandle, error) {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return nil, err
	}
	if _, err := do.Invoke[store.TokenStore](injector); err != nil {
		return nil, err
	}
	_ = do.MustInvoke[*session.Credentials](injector)
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)
	_ = do.MustInvoke[*api.Client](injector)
	_ = do.MustInvoke[*events.Bus](injector)

	return do.Invoke[*providers.AppHandle](injector)
}
