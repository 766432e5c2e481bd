package providers

import (
	"github.com/samber/do/v2"

	"github.com/tenantnotes/notes-client/internal/api"
	"github.com/tenantnotes/notes-client/internal/app"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/logger"
	"github.com/tenantnotes/notes-client/internal/session"
	"github.com/tenantnotes/notes-client/internal/store"
)

// ProvideEventBus provides the event fan-out. It is shut down by the App.
func ProvideEventBus(i do.Injector) (*events.Bus, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return events.NewBus(log.Component("events")), nil
}

// AppHandle wraps the App with shutdown capability.
type AppHandle struct {
	*app.App
}

// Shutdown implements do.Shutdownable.
func (h *AppHandle) Shutdown() error {
	return h.Close()
}

// ProvideApp provides the wired client.
func ProvideApp(i do.Injector) (*AppHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*api.Client](i)
	creds := do.MustInvoke[*session.Credentials](i)
	tokens := do.MustInvoke[store.TokenStore](i)
	bus := do.MustInvoke[*events.Bus](i)

	return &AppHandle{App: app.New(client, creds, tokens, bus, log.Logger)}, nil
}
