package notes

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tenantnotes/notes-client/internal/authz"
	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/session"
	"github.com/tenantnotes/notes-client/internal/validation"
)

// Client is the part of the notes API the registry calls.
type Client interface {
	ListNotes(ctx context.Context, page int, search string) (*domain.NotePage, error)
	CreateNote(ctx context.Context, fields domain.NoteFields) (*domain.Note, error)
	UpdateNote(ctx context.Context, noteID string, fields domain.NoteFields) (*domain.Note, error)
	DeleteNote(ctx context.Context, noteID string) error
	FetchStats(ctx context.Context) (*domain.Stats, error)
}

// Session is the part of the session store the registry depends on.
type Session interface {
	Snapshot() session.Snapshot
	Ticket() uint64
	IsCurrent(epoch uint64) bool
	Absorb(epoch uint64, err error) error
}

// Snapshot is an immutable view of the registry.
type Snapshot struct {
	Search      string            `json:"search"`
	Page        int               `json:"page"`
	Notes       []domain.Note     `json:"notes"`
	Pagination  domain.Pagination `json:"pagination"`
	Stats       *domain.Stats     `json:"stats,omitempty"`
	Permissions authz.Permissions `json:"permissions"`
	// Generation is the load whose result is held, 0 before the first load.
	Generation uint64 `json:"generation"`
	Loaded     bool   `json:"loaded"`
}

// Registry is the single writer of the notes cache.
type Registry struct {
	mu       sync.Mutex
	snap     atomic.Pointer[Snapshot]
	client   Client
	session  Session
	validate *validation.Validator
	emitter  events.Emitter
	logger   *slog.Logger

	view     View
	search   string
	page     int
	loaded   bool
	gen      uint64 // latest issued load
	applied  uint64 // load whose result is held
	stats    *domain.Stats
	statsGen uint64
	epoch    uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(client Client, sess Session, emitter events.Emitter, logger *slog.Logger) *Registry {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r := &Registry{
		client:   client,
		session:  sess,
		validate: validation.New(),
		emitter:  emitter,
		logger:   logger,
		page:     1,
		epoch:    sess.Ticket(),
	}
	r.snap.Store(&Snapshot{Page: 1})
	return r
}

// View returns the current registry snapshot. Notes are private copies.
func (r *Registry) View() Snapshot {
	snap := *r.snap.Load()
	notes := make([]domain.Note, len(snap.Notes))
	for i, n := range snap.Notes {
		notes[i] = n.Clone()
	}
	snap.Notes = notes
	if snap.Stats != nil {
		stats := *snap.Stats
		stats.Subscription = stats.Subscription.Clone()
		snap.Stats = &stats
	}
	return snap
}

// Load fetches a page of notes and replaces the held page with it. Only the
// most recently issued load is ever applied; an older result is dropped and
// Load reports false with a nil error.
func (r *Registry) Load(ctx context.Context, search string, page int) (bool, error) {
	search = strings.TrimSpace(search)
	if page < 1 {
		page = 1
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()
	epoch := r.session.Ticket()

	result, err := r.client.ListNotes(ctx, page, search)
	if err != nil {
		current := r.loadCurrent(gen, epoch)
		err = r.session.Absorb(epoch, err)
		if !current {
			r.logger.Debug("stale load failure dropped", slog.Uint64("generation", gen))
			return false, nil
		}
		return false, err
	}

	r.mu.Lock()
	if gen != r.gen || !r.session.IsCurrent(epoch) {
		r.mu.Unlock()
		r.logger.Debug("stale load dropped",
			slog.Uint64("generation", gen),
			slog.String("search", search))
		return false, nil
	}
	r.view = Reduce(r.view, Loaded(*result))
	r.search, r.page, r.loaded, r.applied = search, page, true, gen
	snap := r.publish()
	r.emitter.Emit(events.New(events.EventNotesLoaded, snap))
	r.mu.Unlock()

	r.logger.Debug("notes loaded",
		slog.Uint64("generation", gen),
		slog.Int("count", len(snap.Notes)),
		slog.Int("total", snap.Pagination.Total))
	return true, nil
}

// Reload repeats the last load.
func (r *Registry) Reload(ctx context.Context) (bool, error) {
	r.mu.Lock()
	search, page := r.search, r.page
	r.mu.Unlock()
	return r.Load(ctx, search, page)
}

// Create validates fields, creates the note and prepends it when the page it
// was issued against is still held. Stats are refreshed afterwards. A failure
// leaves the registry untouched.
func (r *Registry) Create(ctx context.Context, fields domain.NoteFields) (*domain.Note, error) {
	fields, err := r.validate.NoteFields(fields)
	if err != nil {
		return nil, err
	}

	gen, epoch := r.ticket()
	note, err := r.client.CreateNote(ctx, fields)
	if err != nil {
		return nil, r.session.Absorb(epoch, err)
	}

	r.applyIssued(gen, epoch, Created(*note))
	r.refreshAfterCountChange(ctx, epoch)
	return note, nil
}

// Update validates fields and replaces the note. The stored note is the one
// the server returned.
func (r *Registry) Update(ctx context.Context, noteID string, fields domain.NoteFields) (*domain.Note, error) {
	if strings.TrimSpace(noteID) == "" {
		return nil, clienterrors.Validation("note id is required")
	}
	fields, err := r.validate.NoteFields(fields)
	if err != nil {
		return nil, err
	}

	gen, epoch := r.ticket()
	note, err := r.client.UpdateNote(ctx, noteID, fields)
	if err != nil {
		return nil, r.session.Absorb(epoch, err)
	}

	r.applyIssued(gen, epoch, Updated(noteID, *note))
	return note, nil
}

// Delete removes the note on the server, then locally. Stats are refreshed afterwards.
func (r *Registry) Delete(ctx context.Context, noteID string) error {
	if strings.TrimSpace(noteID) == "" {
		return clienterrors.Validation("note id is required")
	}

	gen, epoch := r.ticket()
	if err := r.client.DeleteNote(ctx, noteID); err != nil {
		return r.session.Absorb(epoch, err)
	}

	r.applyIssued(gen, epoch, Deleted(noteID))
	r.refreshAfterCountChange(ctx, epoch)
	return nil
}

// ApplyCreate prepends a server-confirmed note and refreshes stats.
func (r *Registry) ApplyCreate(ctx context.Context, note domain.Note) bool {
	applied := r.apply(Created(note))
	r.refreshAfterCountChange(ctx, r.session.Ticket())
	return applied
}

// ApplyUpdate replaces the note with id in place. Without a match it does nothing.
func (r *Registry) ApplyUpdate(id string, note domain.Note) bool {
	return r.apply(Updated(id, note))
}

// ApplyDelete removes the note with id and refreshes stats.
func (r *Registry) ApplyDelete(ctx context.Context, id string) bool {
	applied := r.apply(Deleted(id))
	r.refreshAfterCountChange(ctx, r.session.Ticket())
	return applied
}

// RefreshStats fetches a fresh stats snapshot. As with Load, only the latest
// refresh is stored and a superseded one reports false with a nil error.
func (r *Registry) RefreshStats(ctx context.Context) (bool, error) {
	r.mu.Lock()
	r.statsGen++
	gen := r.statsGen
	r.mu.Unlock()
	epoch := r.session.Ticket()

	stats, err := r.client.FetchStats(ctx)
	if err != nil {
		current := r.statsCurrent(gen, epoch)
		err = r.session.Absorb(epoch, err)
		if !current {
			return false, nil
		}
		return false, err
	}

	r.mu.Lock()
	if gen != r.statsGen || !r.session.IsCurrent(epoch) {
		r.mu.Unlock()
		r.logger.Debug("stale stats dropped", slog.Uint64("generation", gen))
		return false, nil
	}
	r.stats = stats
	r.emitter.Emit(events.New(events.EventStatsChanged, r.publish()))
	r.mu.Unlock()
	return true, nil
}

// InvalidateStats drops the held stats and any refresh still in flight.
// Until the next refresh, create is not gated by a stale quota.
func (r *Registry) InvalidateStats() {
	r.mu.Lock()
	r.statsGen++
	r.stats = nil
	r.emitter.Emit(events.New(events.EventStatsChanged, r.publish()))
	r.mu.Unlock()
}

// Reset empties the registry and drops everything in flight.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.reset()
	r.emitter.Emit(events.New(events.EventNotesLoaded, r.publish()))
	r.mu.Unlock()
}

// SessionChanged follows the session: a new epoch empties the registry, any
// other change re-derives permissions.
func (r *Registry) SessionChanged(s session.Snapshot) {
	r.mu.Lock()
	changed := s.Epoch != r.epoch
	if changed {
		r.reset()
		r.epoch = s.Epoch
	}
	snap := r.publish()
	if changed {
		r.emitter.Emit(events.New(events.EventNotesLoaded, snap))
	}
	r.mu.Unlock()
}

func (r *Registry) reset() {
	r.gen++
	r.statsGen++
	r.view = View{}
	r.search, r.page, r.loaded, r.applied = "", 1, false, 0
	r.stats = nil
}

// ticket captures the load generation and session epoch an intent is issued against.
func (r *Registry) ticket() (uint64, uint64) {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()
	return gen, r.session.Ticket()
}

// applyIssued applies the result of an intent. Deletes only need the session
// to be unchanged; creates and updates also need the page they were issued
// against to still be the latest load.
func (r *Registry) applyIssued(gen, epoch uint64, c Change) {
	r.mu.Lock()
	if !r.session.IsCurrent(epoch) || (c.Kind != ChangeDeleted && gen != r.gen) {
		r.mu.Unlock()
		r.logger.Debug("stale change dropped",
			slog.String("change", c.Kind.String()),
			slog.String("note_id", c.ID))
		return
	}
	r.applyLocked(c)
}

func (r *Registry) apply(c Change) bool {
	r.mu.Lock()
	return r.applyLocked(c)
}

// applyLocked reduces c into the view and releases mu. Caller holds mu.
func (r *Registry) applyLocked(c Change) bool {
	defer r.mu.Unlock()

	before := r.view
	r.view = Reduce(r.view, c)
	applied := !sameNotes(before, r.view)
	snap := r.publish()
	if applied {
		r.emitter.Emit(events.New(events.EventNotesChanged, snap))
	}
	return applied
}

func (r *Registry) refreshAfterCountChange(ctx context.Context, epoch uint64) {
	if !r.session.IsCurrent(epoch) {
		return
	}
	r.InvalidateStats()
	if _, err := r.RefreshStats(ctx); err != nil {
		r.logger.Warn("stats refresh failed",
			slog.String("code", string(clienterrors.CodeOf(err))),
			slog.String("error", err.Error()))
	}
}

func (r *Registry) loadCurrent(gen, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen == r.gen && r.session.IsCurrent(epoch)
}

func (r *Registry) statsCurrent(gen, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen == r.statsGen && r.session.IsCurrent(epoch)
}

// publish stores a new snapshot. Caller holds mu and emits the result before
// releasing it, so events are delivered in the order snapshots were taken.
func (r *Registry) publish() Snapshot {
	identity := r.session.Snapshot().Identity
	snap := &Snapshot{
		Search:      r.search,
		Page:        r.page,
		Notes:       r.view.Notes,
		Pagination:  r.view.Pagination,
		Stats:       r.stats,
		Permissions: authz.Derive(identity, r.stats),
		Generation:  r.applied,
		Loaded:      r.loaded,
	}
	if snap.Notes == nil {
		snap.Notes = []domain.Note{}
	}
	r.snap.Store(snap)
	return r.View()
}

// sameNotes reports whether two views hold the same notes at the same addresses.
func sameNotes(a, b View) bool {
	if len(a.Notes) != len(b.Notes) {
		return false
	}
	for i := range a.Notes {
		if &a.Notes[i] != &b.Notes[i] {
			return false
		}
	}
	return true
}
