// Package session owns the authenticated identity and its bearer token.
//
// The Store is the single writer of session state. Readers take immutable
// snapshots. Every sign-in, sign-out or failed restore starts a new epoch;
// results of calls issued under an older epoch are discarded.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tenantnotes/notes-client/internal/authz"
	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/store"
	"github.com/tenantnotes/notes-client/internal/validation"
)

// ErrSuperseded is returned when a sign-in, restore or resync finished after the
// session had already moved on. Nothing was applied; it is not a failure.
var ErrSuperseded = errors.New("session changed while the request was in flight")

// Authenticator is the part of the notes API the session calls.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *domain.Identity, error)
	FetchProfile(ctx context.Context) (*domain.Identity, error)
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	State       domain.SessionState `json:"state"`
	Identity    *domain.Identity    `json:"identity,omitempty"`
	Permissions authz.Permissions   `json:"permissions"`
	Epoch       uint64              `json:"epoch"`
}

// Authenticated reports whether an identity is held.
func (s Snapshot) Authenticated() bool {
	return s.State == domain.SessionAuthenticated && s.Identity != nil
}

// Store is the session authority.
type Store struct {
	mu        sync.Mutex
	snap      atomic.Pointer[Snapshot]
	creds     *Credentials
	auth      Authenticator
	tokens    store.TokenStore
	validate  *validation.Validator
	emitter   events.Emitter
	logger    *slog.Logger
	listeners []func(Snapshot)
}

// New creates a store in the loading state. Call Restore to resolve it.
func New(auth Authenticator, creds *Credentials, tokens store.TokenStore, emitter events.Emitter, logger *slog.Logger) *Store {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	s := &Store{
		creds:    creds,
		auth:     auth,
		tokens:   tokens,
		validate: validation.New(),
		emitter:  emitter,
		logger:   logger,
	}
	s.snap.Store(&Snapshot{State: domain.SessionLoading})
	return s
}

// OnChange registers fn to run after every published change, in order.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the current session view. The identity is a private copy.
func (s *Store) Snapshot() Snapshot {
	return s.snap.Load().copy()
}

func (s Snapshot) copy() Snapshot {
	if s.Identity != nil {
		s.Identity = s.Identity.Clone()
	}
	return s
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	return s.creds.Token()
}

// Ticket returns the current epoch, to be checked with IsCurrent when a result arrives.
func (s *Store) Ticket() uint64 {
	return s.snap.Load().Epoch
}

// IsCurrent reports whether epoch is still the session's epoch.
func (s *Store) IsCurrent(epoch uint64) bool {
	return s.snap.Load().Epoch == epoch
}

// Login signs in. Input is checked locally first; a rejection leaves the session untouched.
func (s *Store) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	epoch := s.Ticket()
	req, err := s.validate.Login(email, password)
	if err != nil {
		s.resolveSignedOut(epoch)
		return nil, err
	}

	token, identity, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("login rejected",
			slog.String("email", req.Email),
			slog.String("code", string(clienterrors.CodeOf(err))))
		s.resolveSignedOut(epoch)
		return nil, err
	}

	s.mu.Lock()
	if !s.IsCurrent(epoch) {
		s.mu.Unlock()
		s.logger.Debug("stale login result dropped", slog.String("email", req.Email))
		return nil, ErrSuperseded
	}
	s.creds.set(token)
	s.persist(ctx, token)
	snap := s.publish(domain.SessionAuthenticated, identity, epoch+1)
	s.mu.Unlock()

	s.logger.Info("signed in",
		slog.String("user_id", identity.UserID),
		slog.String("tenant", identity.Tenant.Slug),
		slog.String("role", string(identity.Role)))
	s.notify(snap)
	return identity.Clone(), nil
}

// Restore resumes a persisted session. Without a persisted token the session
// resolves to unauthenticated and Restore returns (nil, nil). Any failure to
// validate the token clears it.
func (s *Store) Restore(ctx context.Context) (*domain.Identity, error) {
	epoch := s.Ticket()

	token, err := s.tokens.LoadToken(ctx)
	if err != nil {
		s.logger.Warn("failed to read persisted token", slog.String("error", err.Error()))
	}
	if token == "" {
		s.mu.Lock()
		if !s.IsCurrent(epoch) {
			s.mu.Unlock()
			return nil, ErrSuperseded
		}
		snap := s.publish(domain.SessionUnauthenticated, nil, epoch+1)
		s.mu.Unlock()
		s.notify(snap)
		return nil, nil
	}

	s.mu.Lock()
	if !s.IsCurrent(epoch) {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.creds.set(token)
	s.mu.Unlock()

	identity, err := s.auth.FetchProfile(ctx)

	s.mu.Lock()
	if !s.IsCurrent(epoch) {
		s.mu.Unlock()
		s.logger.Debug("stale restore result dropped")
		return nil, ErrSuperseded
	}
	if err != nil {
		s.creds.clear()
		s.forget(ctx)
		snap := s.publish(domain.SessionUnauthenticated, nil, epoch+1)
		s.mu.Unlock()

		s.logger.Info("persisted session rejected", slog.String("code", string(clienterrors.CodeOf(err))))
		s.notify(snap)
		return nil, err
	}
	snap := s.publish(domain.SessionAuthenticated, identity, epoch+1)
	s.mu.Unlock()

	s.logger.Info("session restored",
		slog.String("user_id", identity.UserID),
		slog.String("tenant", identity.Tenant.Slug))
	s.notify(snap)
	return identity.Clone(), nil
}

// Logout clears the token and identity immediately. Results of calls issued
// before the logout are discarded when they arrive.
func (s *Store) Logout() {
	s.mu.Lock()
	prev := s.snap.Load()
	snap := s.signOutLocked(prev)
	s.mu.Unlock()

	if prev.Identity != nil {
		s.logger.Info("signed out", slog.String("user_id", prev.Identity.UserID))
	}
	s.notify(snap)
}

// signOutLocked drops the credentials and starts the next epoch. Caller holds mu.
func (s *Store) signOutLocked(prev *Snapshot) Snapshot {
	s.creds.clear()
	s.forget(context.Background())
	return s.publish(domain.SessionUnauthenticated, nil, prev.Epoch+1)
}

// resolveSignedOut ends the loading state after a failed sign-in. The epoch is
// kept, so a restore still in flight may yet apply.
func (s *Store) resolveSignedOut(epoch uint64) {
	s.mu.Lock()
	cur := s.snap.Load()
	if cur.Epoch != epoch || cur.State != domain.SessionLoading {
		s.mu.Unlock()
		return
	}
	snap := s.publish(domain.SessionUnauthenticated, nil, epoch)
	s.mu.Unlock()

	s.notify(snap)
}

// ReplaceTenant swaps the tenant of the held identity in one step.
// It is a no-op when signed out.
func (s *Store) ReplaceTenant(tenant domain.Tenant) {
	s.mu.Lock()
	cur := s.snap.Load()
	if !cur.Authenticated() {
		s.mu.Unlock()
		return
	}
	tenant.Subscription = tenant.Subscription.Normalize()
	snap := s.publish(domain.SessionAuthenticated, cur.Identity.WithTenant(tenant), cur.Epoch)
	s.mu.Unlock()

	s.notify(snap)
}

// Resync re-fetches the profile and replaces the whole identity.
func (s *Store) Resync(ctx context.Context) (*domain.Identity, error) {
	cur := s.snap.Load()
	if !cur.Authenticated() {
		return nil, clienterrors.Authentication("")
	}

	identity, err := s.auth.FetchProfile(ctx)
	if err != nil {
		return nil, s.Absorb(cur.Epoch, err)
	}

	s.mu.Lock()
	if !s.IsCurrent(cur.Epoch) {
		s.mu.Unlock()
		s.logger.Debug("stale resync result dropped")
		return nil, ErrSuperseded
	}
	snap := s.publish(domain.SessionAuthenticated, identity, cur.Epoch)
	s.mu.Unlock()

	s.notify(snap)
	return identity.Clone(), nil
}

// Absorb inspects the result of a call issued under epoch. An authentication
// failure of the current session forces a logout. err is returned unchanged.
func (s *Store) Absorb(epoch uint64, err error) error {
	if err == nil || clienterrors.CodeOf(err) != clienterrors.CodeAuthentication {
		return err
	}

	s.mu.Lock()
	cur := s.snap.Load()
	if cur.Epoch != epoch || !cur.Authenticated() {
		s.mu.Unlock()
		return err
	}
	snap := s.signOutLocked(cur)
	s.mu.Unlock()

	s.logger.Info("session expired", slog.String("user_id", cur.Identity.UserID))
	s.notify(snap)
	return err
}

// publish swaps in a new snapshot and emits it. Caller holds mu.
func (s *Store) publish(state domain.SessionState, identity *domain.Identity, epoch uint64) Snapshot {
	snap := &Snapshot{
		State:       state,
		Identity:    identity,
		Permissions: authz.Derive(identity, nil),
		Epoch:       epoch,
	}
	s.snap.Store(snap)
	s.emitter.Emit(events.New(events.EventSessionChanged, snap.copy()))
	return snap.copy()
}

// notify runs the change listeners outside the lock.
func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Store) persist(ctx context.Context, token string) {
	if err := s.tokens.SaveToken(ctx, token); err != nil {
		s.logger.Warn("failed to persist token", slog.String("error", err.Error()))
	}
}

func (s *Store) forget(ctx context.Context) {
	if err := s.tokens.ClearToken(ctx); err != nil {
		s.logger.Warn("failed to clear persisted token", slog.String("error", err.Error()))
	}
}
