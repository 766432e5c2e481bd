// Package app assembles the session, notes registry and admin workflow over
// one API client and one event bus.
package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tenantnotes/notes-client/internal/admin"
	"github.com/tenantnotes/notes-client/internal/api"
	"github.com/tenantnotes/notes-client/internal/domain"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/notes"
	"github.com/tenantnotes/notes-client/internal/session"
	"github.com/tenantnotes/notes-client/internal/store"
)

// App is the client as a consumer sees it.
type App struct {
	Session *session.Store
	Notes   *notes.Registry
	Admin   *admin.Workflow
	Events  *events.Bus

	tokens store.TokenStore
	logger *slog.Logger
}

// New wires the components. client must read its token from creds.
func New(client api.Resources, creds *session.Credentials, tokens store.TokenStore, bus *events.Bus, logger *slog.Logger) *App {
	sess := session.New(client, creds, tokens, bus, logger.With(slog.String("component", "session")))
	registry := notes.NewRegistry(client, sess, bus, logger.With(slog.String("component", "notes")))
	sess.OnChange(registry.SessionChanged)

	return &App{
		Session: sess,
		Notes:   registry,
		Admin:   admin.New(client, sess, registry, bus, logger.With(slog.String("component", "admin"))),
		Events:  bus,
		tokens:  tokens,
		logger:  logger,
	}
}

// Start resolves the persisted session. When it is still valid the first page
// of notes and the stats are fetched together. A nil identity means signed out.
func (a *App) Start(ctx context.Context) (*domain.Identity, error) {
	identity, err := a.Session.Restore(ctx)
	if err != nil || identity == nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.Notes.Load(gctx, "", 1)
		return err
	})
	g.Go(func() error {
		_, err := a.Notes.RefreshStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return identity, err
	}

	view := a.Notes.View()
	a.logger.Debug("client started",
		slog.String("user_id", identity.UserID),
		slog.Int("notes", len(view.Notes)))
	return identity, nil
}

// Close stops event delivery and closes the token store.
func (a *App) Close() error {
	return errors.Join(a.Events.Shutdown(), a.tokens.Close())
}
