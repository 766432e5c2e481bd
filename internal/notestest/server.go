// Package notestest runs an in-memory tenant notes server for tests.
//
// It speaks the same envelope and enforces the same rules as the real server:
// bearer tokens that expire, admin-only invite and upgrade, and a per-tenant
// note cap on the free plan.
//
//	srv := notestest.Start(t)
//	client := api.New(api.Options{BaseURL: srv.URL()}, tokens)
package notestest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tenantnotes/notes-client/internal/api"
	"github.com/tenantnotes/notes-client/internal/domain"
	"github.com/tenantnotes/notes-client/internal/http/response"
)

// Password is the password of every seeded account and of invited users.
const Password = "password"

// Seeded accounts.
const (
	AcmeAdmin    = "admin@acme.test"
	AcmeMember   = "user@acme.test"
	GlobexAdmin  = "admin@globex.test"
	GlobexMember = "user@globex.test"
)

type tenant struct {
	id   string
	name string
	slug string
	plan domain.Plan
}

type user struct {
	id           string
	email        string
	passwordHash string
	role         domain.Role
	tenantID     string
}

type note struct {
	id        string
	tenantID  string
	title     string
	content   string
	tags      []string
	author    string
	createdAt time.Time
}

type failure struct {
	status  int
	message string
}

// Server is an in-memory notes server.
type Server struct {
	mu        sync.Mutex
	tenants   map[string]*tenant // by id
	users     map[string]*user   // by lowercase email
	notes     []*note            // newest first
	freeLimit int
	tokens    *tokenIssuerService
	hits      map[api.Intent]int
	failNext  map[api.Intent]failure
	holds     map[api.Intent]chan struct{}

	router chi.Router
	http   *httptest.Server
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithFreeLimit sets the note cap of free tenants (default 3).
func WithFreeLimit(n int) Option {
	return func(s *Server) { s.freeLimit = n }
}

// WithTokenTTL sets the lifetime of issued tokens (default 1h).
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokens.ttl = d }
}

// New creates a server seeded with the acme and globex tenants, each with one
// admin and one member, all on the free plan.
func New(opts ...Option) *Server {
	s := &Server{
		tenants:   make(map[string]*tenant),
		users:     make(map[string]*user),
		freeLimit: 3,
		tokens:    newTokenIssuer(time.Hour),
		hits:      make(map[api.Intent]int),
		failNext:  make(map[api.Intent]failure),
		holds:     make(map[api.Intent]chan struct{}),
		router:    chi.NewRouter(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	acme := s.addTenant("Acme", "acme")
	globex := s.addTenant("Globex", "globex")
	s.addUser(AcmeAdmin, domain.RoleAdmin, acme.id)
	s.addUser(AcmeMember, domain.RoleMember, acme.id)
	s.addUser(GlobexAdmin, domain.RoleAdmin, globex.id)
	s.addUser(GlobexMember, domain.RoleMember, globex.id)

	s.setupRoutes()
	return s
}

// Start runs a new server for the duration of the test.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := New(opts...)
	s.http = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// URL returns the base URL of a started server.
func (s *Server) URL() string {
	return s.http.URL
}

// Close stops a started server and releases any held requests.
func (s *Server) Close() {
	s.mu.Lock()
	for intent, ch := range s.holds {
		close(ch)
		delete(s.holds, intent)
	}
	s.mu.Unlock()
	if s.http != nil {
		s.http.Close()
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handle(api.IntentLogin, s.handleLogin))
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/profile", s.handle(api.IntentProfile, s.handleProfile))
			r.Post("/invite", s.handle(api.IntentInvite, s.handleInvite))
		})
	})

	s.router.Route("/notes", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handle(api.IntentListNotes, s.handleListNotes))
		r.Post("/", s.handle(api.IntentCreateNote, s.handleCreateNote))
		r.Get("/stats", s.handle(api.IntentStats, s.handleStats))
		r.Put("/{id}", s.handle(api.IntentUpdateNote, s.handleUpdateNote))
		r.Delete("/{id}", s.handle(api.IntentDeleteNote, s.handleDeleteNote))
	})

	s.router.With(s.requireAuth).
		Post("/tenants/{slug}/upgrade", s.handle(api.IntentUpgradeTenant, s.handleUpgrade))
}

// handle counts the request, applies a held gate or scripted failure, then serves.
func (s *Server) handle(intent api.Intent, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[intent]++
		gate := s.holds[intent]
		f, scripted := s.failNext[intent]
		delete(s.failNext, intent)
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if scripted {
			response.Error(w, f.status, f.message, s.logger)
			return
		}
		next(w, r)
	}
}

// Hits returns how many authenticated requests reached the route for intent
// (login counts every attempt).
func (s *Server) Hits(intent api.Intent) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[intent]
}

// FailNext makes the next request for intent fail with status and message.
func (s *Server) FailNext(intent api.Intent, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[intent] = failure{status: status, message: message}
}

// Hold blocks requests for intent until the returned release func is called.
func (s *Server) Hold(intent api.Intent) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.holds[intent] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[intent] == gate {
				delete(s.holds, intent)
				close(gate)
			}
			s.mu.Unlock()
		})
	}
}

// RevokeTokens invalidates every token issued so far, as if they had expired.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.rotate()
}

// SetPlan changes a tenant's plan behind the client's back.
func (s *Server) SetPlan(slug string, plan domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tenantBySlug(slug); t != nil {
		t.plan = plan
	}
}

// NoteCount returns the number of notes a tenant holds.
func (s *Server) NoteCount(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenantBySlug(slug)
	if t == nil {
		return 0
	}
	return s.countNotes(t.id)
}

// Member reports whether email belongs to the tenant with slug.
func (s *Server) Member(slug, email string) (domain.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[normalizeEmail(email)]
	t := s.tenantBySlug(slug)
	if u == nil || t == nil || u.tenantID != t.id {
		return "", false
	}
	return u.role, true
}

// SeedNote stores a note directly, bypassing the quota. It returns the note id.
func (s *Server) SeedNote(slug, authorEmail, title string, tags ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenantBySlug(slug)
	if t == nil {
		return ""
	}
	n := &note{
		id:        uuid.NewString(),
		tenantID:  t.id,
		title:     title,
		content:   title,
		tags:      append([]string{}, tags...),
		author:    authorEmail,
		createdAt: time.Now(),
	}
	s.notes = append([]*note{n}, s.notes...)
	return n.id
}

func (s *Server) addTenant(name, slug string) *tenant {
	t := &tenant{id: uuid.NewString(), name: name, slug: slug, plan: domain.PlanFree}
	s.tenants[t.id] = t
	return t
}

func (s *Server) addUser(email string, role domain.Role, tenantID string) *user {
	hash, err := hashPassword(Password)
	if err != nil {
		panic(err)
	}
	u := &user{
		id:           uuid.NewString(),
		email:        normalizeEmail(email),
		passwordHash: hash,
		role:         role,
		tenantID:     tenantID,
	}
	s.users[u.email] = u
	return u
}

func (s *Server) tenantBySlug(slug string) *tenant {
	for _, t := range s.tenants {
		if t.slug == slug {
			return t
		}
	}
	return nil
}

func (s *Server) countNotes(tenantID string) int {
	n := 0
	for _, note := range s.notes {
		if note.tenantID == tenantID {
			n++
		}
	}
	return n
}
