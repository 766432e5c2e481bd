// Package admin implements the tenant administration intents: inviting
// members and upgrading the plan.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tenantnotes/notes-client/internal/authz"
	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/session"
	"github.com/tenantnotes/notes-client/internal/validation"
)

// Client is the part of the notes API the workflow calls.
type Client interface {
	InviteUser(ctx context.Context, email string, role domain.Role) (*domain.InviteNotice, error)
	UpgradeTenant(ctx context.Context, tenantSlug string) error
}

// Session is the part of the session store the workflow depends on.
type Session interface {
	Snapshot() session.Snapshot
	IsCurrent(epoch uint64) bool
	Absorb(epoch uint64, err error) error
	Resync(ctx context.Context) (*domain.Identity, error)
}

// Registry is the part of the notes registry refreshed after an upgrade.
type Registry interface {
	InvalidateStats()
	RefreshStats(ctx context.Context) (bool, error)
	Reload(ctx context.Context) (bool, error)
}

// Workflow runs admin-only intents. Nothing is sent for a non-admin session.
type Workflow struct {
	client   Client
	session  Session
	registry Registry
	validate *validation.Validator
	emitter  events.Emitter
	logger   *slog.Logger
}

// New creates a workflow.
func New(client Client, sess Session, registry Registry, emitter events.Emitter, logger *slog.Logger) *Workflow {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Workflow{
		client:   client,
		session:  sess,
		registry: registry,
		validate: validation.New(),
		emitter:  emitter,
		logger:   logger,
	}
}

// Invite adds a member to the caller's tenant. The returned notice carries the
// server-issued default password, to be shown once. The role defaults to member.
func (w *Workflow) Invite(ctx context.Context, email string, role domain.Role) (*domain.InviteNotice, error) {
	snap := w.session.Snapshot()
	if !authz.CanInvite(snap.Identity) {
		return nil, clienterrors.Authorization("Only admins can invite users")
	}

	req, err := w.validate.Invite(email, role)
	if err != nil {
		return nil, err
	}

	notice, err := w.client.InviteUser(ctx, req.Email, req.Role)
	if err != nil {
		return nil, w.session.Absorb(snap.Epoch, err)
	}

	w.logger.Info("member invited",
		slog.String("email", notice.Email),
		slog.String("role", string(notice.Role)),
		slog.String("tenant", snap.Identity.Tenant.Slug))
	w.emitter.Emit(events.New(events.EventMemberInvited, domain.InviteNotice{
		Email: notice.Email,
		Role:  notice.Role,
	}))
	return notice, nil
}

// Upgrade moves the caller's tenant to the pro plan and resynchronizes: the
// identity is re-fetched, held stats are dropped, then stats and the current
// page of notes are reloaded together.
//
// If the session changed while the upgrade was in flight, Upgrade returns
// (nil, nil). When the identity was refreshed but a follow-up reload failed,
// the identity is returned together with the error.
func (w *Workflow) Upgrade(ctx context.Context) (*domain.Identity, error) {
	snap := w.session.Snapshot()
	if !authz.CanViewAdminSurface(snap.Identity) {
		return nil, clienterrors.Authorization("Only admins can upgrade the subscription")
	}
	slug := snap.Identity.Tenant.Slug
	if slug == "" {
		return nil, clienterrors.Validation("tenant slug is required")
	}

	if err := w.client.UpgradeTenant(ctx, slug); err != nil {
		return nil, w.session.Absorb(snap.Epoch, err)
	}
	w.logger.Info("tenant upgraded", slog.String("tenant", slug))
	if !w.session.IsCurrent(snap.Epoch) {
		w.logger.Debug("session changed during upgrade", slog.String("tenant", slug))
		return nil, nil
	}

	w.registry.InvalidateStats()
	identity, err := w.session.Resync(ctx)
	if errors.Is(err, session.ErrSuperseded) {
		w.logger.Debug("session changed during upgrade", slog.String("tenant", slug))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh profile after upgrade: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := w.registry.RefreshStats(gctx)
		return err
	})
	g.Go(func() error {
		_, err := w.registry.Reload(gctx)
		return err
	})
	err = g.Wait()

	w.emitter.Emit(events.New(events.EventTenantUpgraded, identity.Tenant.Clone()))
	if err != nil {
		w.logger.Warn("reload after upgrade failed",
			slog.String("tenant", slug),
			slog.String("error", err.Error()))
		return identity, fmt.Errorf("reload after upgrade: %w", err)
	}
	return identity, nil
}
