package notestest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/tenantnotes/notes-client/internal/domain"
	"github.com/tenantnotes/notes-client/internal/http/response"
)

type ctxKey string

const userKey ctxKey = "user"

// recentWindow bounds the "recent notes" figure of stats.
const recentWindow = 7 * 24 * time.Hour

// requireAuth resolves the bearer token to a user.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			response.Unauthorized(w, "Access token required", s.logger)
			return
		}

		s.mu.Lock()
		userID, err := s.tokens.verify(tokenString)
		var u *user
		if err == nil {
			u = s.userByID(userID)
		}
		s.mu.Unlock()

		if u == nil {
			response.Unauthorized(w, "Invalid or expired token", s.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(userKey).(*user)
	return u
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		response.BadRequest(w, "Email and password are required", s.logger)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[normalizeEmail(req.Email)]
	if u == nil || !verifyPassword(u.passwordHash, req.Password) {
		response.Unauthorized(w, "Invalid credentials", s.logger)
		return
	}

	response.OK(w, response.Fields{
		"token": s.tokens.issue(u.id),
		"user":  s.userJSON(u),
	}, s.logger)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	response.OK(w, response.Fields{"user": s.userJSON(currentUser(r))}, s.logger)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)
	if caller.role != domain.RoleAdmin {
		response.Forbidden(w, "Admin access required", s.logger)
		return
	}

	var req domain.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.BadRequest(w, "A valid email is required", s.logger)
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}
	if !req.Role.Valid() {
		response.BadRequest(w, "Role must be admin or member", s.logger)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[normalizeEmail(req.Email)]; exists {
		response.Error(w, http.StatusConflict, "User already exists", s.logger)
		return
	}
	s.addUser(req.Email, req.Role, caller.tenantID)

	response.OK(w, response.Fields{
		"message":         "User invited successfully",
		"defaultPassword": Password,
	}, s.logger)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)
	page := positiveInt(r.URL.Query().Get("page"), 1)
	limit := positiveInt(r.URL.Query().Get("limit"), 10)
	search := fold(strings.TrimSpace(r.URL.Query().Get("search")))

	s.mu.Lock()
	var matched []*note
	for _, n := range s.notes {
		if n.tenantID == caller.tenantID && n.matches(search) {
			matched = append(matched, n)
		}
	}

	total := len(matched)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	notes := make([]map[string]any, 0, end-start)
	for _, n := range matched[start:end] {
		notes = append(notes, n.json())
	}
	s.mu.Unlock()

	response.Data(w, http.StatusOK, map[string]any{
		"notes": notes,
		"pagination": domain.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, s.logger)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)

	fields, ok := s.decodeFields(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tenants[caller.tenantID]
	if t.plan == domain.PlanFree && s.countNotes(t.id) >= s.freeLimit {
		response.Forbidden(w, "Note limit reached for free plan. Upgrade to Pro for unlimited notes.", s.logger)
		return
	}

	n := &note{
		id:        uuid.NewString(),
		tenantID:  t.id,
		title:     fields.Title,
		content:   fields.Content,
		tags:      fields.Tags,
		author:    caller.email,
		createdAt: time.Now(),
	}
	s.notes = append([]*note{n}, s.notes...)

	response.Data(w, http.StatusCreated, map[string]any{"note": n.json()}, s.logger)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)

	fields, ok := s.decodeFields(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.noteInTenant(chi.URLParam(r, "id"), caller.tenantID)
	if n == nil {
		response.NotFound(w, "Note not found", s.logger)
		return
	}
	n.title = fields.Title
	n.content = fields.Content
	n.tags = fields.Tags

	response.Data(w, http.StatusOK, map[string]any{"note": n.json()}, s.logger)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.noteInTenant(chi.URLParam(r, "id"), caller.tenantID)
	if target == nil {
		response.NotFound(w, "Note not found", s.logger)
		return
	}
	s.notes = slices.DeleteFunc(s.notes, func(n *note) bool { return n == target })

	response.OK(w, response.Fields{"message": "Note deleted successfully"}, s.logger)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tenants[caller.tenantID]
	byAuthor := map[string]int{}
	var total, recent int
	for _, n := range s.notes {
		if n.tenantID != t.id {
			continue
		}
		total++
		byAuthor[n.author]++
		if time.Since(n.createdAt) < recentWindow {
			recent++
		}
	}

	notesByUser := make([]domain.UserNoteCount, 0, len(byAuthor))
	for author, count := range byAuthor {
		notesByUser = append(notesByUser, domain.UserNoteCount{Author: author, Count: count})
	}
	slices.SortFunc(notesByUser, func(a, b domain.UserNoteCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Author, b.Author)
	})

	response.Data(w, http.StatusOK, domain.Stats{
		TotalNotes:   total,
		RecentNotes:  recent,
		NotesByUser:  notesByUser,
		Subscription: s.subscription(t),
	}, s.logger)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)
	if caller.role != domain.RoleAdmin {
		response.Forbidden(w, "Only admins can upgrade the subscription", s.logger)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tenantBySlug(chi.URLParam(r, "slug"))
	if t == nil {
		response.NotFound(w, "Tenant not found", s.logger)
		return
	}
	if t.id != caller.tenantID {
		response.Forbidden(w, "Cannot upgrade another tenant", s.logger)
		return
	}
	t.plan = domain.PlanPro

	response.OK(w, response.Fields{
		"message": "Tenant upgraded to Pro plan successfully",
		"data":    map[string]any{"tenant": s.tenantJSON(t)},
	}, s.logger)
}

// decodeFields reads and checks a note body, writing a 400 when it is unusable.
func (s *Server) decodeFields(w http.ResponseWriter, r *http.Request) (domain.NoteFields, bool) {
	var fields domain.NoteFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return fields, false
	}
	if strings.TrimSpace(fields.Title) == "" || strings.TrimSpace(fields.Content) == "" {
		response.BadRequest(w, "Title and content are required", s.logger)
		return fields, false
	}
	if fields.Tags == nil {
		fields.Tags = []string{}
	}
	return fields, true
}

func (s *Server) noteInTenant(noteID, tenantID string) *note {
	for _, n := range s.notes {
		if n.id == noteID && n.tenantID == tenantID {
			return n
		}
	}
	return nil
}

func (s *Server) userByID(userID string) *user {
	for _, u := range s.users {
		if u.id == userID {
			return u
		}
	}
	return nil
}

func (s *Server) subscription(t *tenant) domain.Subscription {
	if t.plan == domain.PlanPro {
		return domain.Subscription{Plan: domain.PlanPro, IsPro: true, CanCreateMore: true}
	}
	limit := s.freeLimit
	return domain.Subscription{
		Plan:          domain.PlanFree,
		MaxNotes:      &limit,
		CanCreateMore: s.countNotes(t.id) < limit,
	}
}

func (s *Server) tenantJSON(t *tenant) map[string]any {
	return map[string]any{
		"id":           t.id,
		"name":         t.name,
		"slug":         t.slug,
		"subscription": s.subscription(t),
	}
}

func (s *Server) userJSON(u *user) map[string]any {
	return map[string]any{
		"id":     u.id,
		"email":  u.email,
		"role":   u.role,
		"tenant": s.tenantJSON(s.tenants[u.tenantID]),
	}
}

func (n *note) matches(search string) bool {
	if search == "" {
		return true
	}
	if strings.Contains(fold(n.title), search) || strings.Contains(fold(n.content), search) {
		return true
	}
	return slices.ContainsFunc(n.tags, func(tag string) bool {
		return strings.Contains(fold(tag), search)
	})
}

// fold prepares text for case-insensitive search: composed form, case folded.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func (n *note) json() map[string]any {
	return map[string]any{
		"_id":       n.id,
		"title":     n.title,
		"content":   n.content,
		"tags":      slices.Clone(n.tags),
		"author":    map[string]string{"email": n.author},
		"createdAt": n.createdAt.UTC().Format(time.RFC3339Nano),
	}
}

func positiveInt(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
