package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/http/response"
	"github.com/tenantnotes/notes-client/internal/ratelimit"
)

const testToken = "v4.local.test"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		ReadRetryAttempts: 3,
		RetryBaseDelay:    time.Millisecond,
	}, TokenFunc(func() string { return testToken }))
}

func TestClient_ListNotesRequest(t *testing.T) {
	var got *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		response.Data(w, http.StatusOK, map[string]any{
			"notes": []map[string]any{
				{"_id": "n1", "title": "a", "content": "b", "tags": []string{"x"}},
			},
			"pagination": map[string]int{"page": 2, "limit": 10, "total": 11, "pages": 2},
		}, nil)
	})

	page, err := client.ListNotes(context.Background(), 2, "")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/notes", got.URL.Path)
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "10", got.URL.Query().Get("limit"))
	assert.False(t, got.URL.Query().Has("search"), "empty search is omitted")
	assert.Equal(t, "Bearer "+testToken, got.Header.Get("Authorization"))
	assert.True(t, strings.HasPrefix(got.Header.Get(RequestIDHeader), "req-"))

	require.Len(t, page.Notes, 1)
	assert.Equal(t, "n1", page.Notes[0].ID)
	assert.Equal(t, 11, page.Pagination.Total)
}

func TestClient_ListNotesSearch(t *testing.T) {
	var query string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("search")
		response.Data(w, http.StatusOK, map[string]any{"notes": nil, "pagination": map[string]int{}}, nil)
	})

	page, err := client.ListNotes(context.Background(), 0, "q two")
	require.NoError(t, err)
	assert.Equal(t, "q two", query)
	assert.NotNil(t, page.Notes)
}

func TestClient_LoginSendsNoToken(t *testing.T) {
	var auth string
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		response.OK(w, response.Fields{
			"token": "v4.local.fresh",
			"user": map[string]any{
				"_id":   "u1",
				"email": "admin@acme.test",
				"role":  "ADMIN",
				"tenant": map[string]any{
					"_id": "t1", "name": "Acme", "slug": "acme",
					"subscription": map[string]any{"plan": "free", "maxNotes": 3, "isPro": false, "canCreateMore": true},
				},
			},
		}, nil)
	})

	token, identity, err := client.Login(context.Background(), "admin@acme.test", "password")
	require.NoError(t, err)

	assert.Empty(t, auth)
	assert.Equal(t, "admin@acme.test", body["email"])
	assert.Equal(t, "password", body["password"])
	assert.Equal(t, "v4.local.fresh", token)
	assert.Equal(t, "u1", identity.UserID)
	assert.True(t, identity.IsAdmin())
	assert.Equal(t, "acme", identity.Tenant.Slug)
	assert.Equal(t, "3", identity.Tenant.Subscription.LimitLabel())
}

func TestClient_LoginRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		response.Unauthorized(w, "Invalid credentials", nil)
	})

	_, _, err := client.Login(context.Background(), "a@b.c", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, clienterrors.ErrAuthentication)

	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "Invalid credentials", clientErr.UserMessage())
}

func TestClient_ProfileFromData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		response.Data(w, http.StatusOK, map[string]any{
			"user": map[string]any{"id": "u2", "email": "m@acme.test", "role": "member"},
		}, nil)
	})

	identity, err := client.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u2", identity.UserID)
	assert.False(t, identity.IsAdmin())
}

func TestClient_CreateAndUpdate(t *testing.T) {
	var bodies []domain.NoteFields
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var f domain.NoteFields
		_ = json.NewDecoder(r.Body).Decode(&f)
		bodies = append(bodies, f)
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		response.Data(w, http.StatusCreated, map[string]any{
			"note": map[string]any{"_id": "n9", "title": f.Title, "content": f.Content, "tags": f.Tags},
		}, nil)
	})

	fields := domain.NoteFields{Title: "t", Content: "c", Tags: []string{"a"}}
	created, err := client.CreateNote(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, "n9", created.ID)

	_, err = client.UpdateNote(context.Background(), "n/9", fields)
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /notes", "PUT /notes/n%2F9"}, paths)
	assert.Equal(t, fields, bodies[0])
}

func TestClient_CreateWithoutIDIsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		response.Data(w, http.StatusCreated, map[string]any{"note": map[string]any{"title": "x"}}, nil)
	})

	_, err := client.CreateNote(context.Background(), domain.NoteFields{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
}

func TestClient_InviteDefaultsRole(t *testing.T) {
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		response.OK(w, response.Fields{"defaultPassword": "password"}, nil)
	})

	notice, err := client.InviteUser(context.Background(), "new@acme.test", "")
	require.NoError(t, err)
	assert.Equal(t, "member", body["role"])
	assert.Equal(t, domain.RoleMember, notice.Role)
	assert.Equal(t, "password", notice.DefaultPassword)
}

func TestClient_StatsNormalizesPro(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		response.Data(w, http.StatusOK, map[string]any{
			"totalNotes":   7,
			"recentNotes":  2,
			"subscription": map[string]any{"plan": "pro", "maxNotes": 3, "canCreateMore": false},
		}, nil)
	})

	stats, err := client.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalNotes)
	assert.True(t, stats.Subscription.IsPro)
	assert.True(t, stats.Subscription.CanCreateMore)
	assert.Nil(t, stats.Subscription.MaxNotes)
	assert.NotNil(t, stats.NotesByUser)
}

func TestClient_UpgradePath(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		response.OK(w, nil, nil)
	})

	require.NoError(t, client.UpgradeTenant(context.Background(), "acme"))
	assert.Equal(t, "POST /tenants/acme/upgrade", path)
}

func TestClient_Classification(t *testing.T) {
	tests := []struct {
		name   string
		call   func(*Client) error
		status int
		fields response.Fields
		raw    string
		want   clienterrors.Code
	}{
		{
			name:   "401 on read",
			call:   func(c *Client) error { _, err := c.FetchProfile(context.Background()); return err },
			status: http.StatusUnauthorized,
			fields: response.Fields{"error": "Token expired"},
			want:   clienterrors.CodeAuthentication,
		},
		{
			name:   "403 on create is quota",
			call:   createNote,
			status: http.StatusForbidden,
			fields: response.Fields{"error": "Note limit reached"},
			want:   clienterrors.CodeQuota,
		},
		{
			name:   "402 on create is quota",
			call:   createNote,
			status: http.StatusPaymentRequired,
			want:   clienterrors.CodeQuota,
		},
		{
			name:   "400 mentioning limit on create is quota",
			call:   createNote,
			status: http.StatusBadRequest,
			fields: response.Fields{"error": "Free plan limit of 3 notes reached. Upgrade to Pro."},
			want:   clienterrors.CodeQuota,
		},
		{
			name:   "400 on create is validation",
			call:   createNote,
			status: http.StatusBadRequest,
			fields: response.Fields{"error": "Title is required"},
			want:   clienterrors.CodeValidation,
		},
		{
			name:   "403 on invite is authorization",
			call:   func(c *Client) error { _, err := c.InviteUser(context.Background(), "a@b.c", "member"); return err },
			status: http.StatusForbidden,
			fields: response.Fields{"error": "Admin access required"},
			want:   clienterrors.CodeAuthorization,
		},
		{
			name:   "403 on login is authentication",
			call:   login,
			status: http.StatusForbidden,
			fields: response.Fields{"error": "Account disabled"},
			want:   clienterrors.CodeAuthentication,
		},
		{
			name:   "400 on login is authentication",
			call:   login,
			status: http.StatusBadRequest,
			fields: response.Fields{"error": "Email and password are required"},
			want:   clienterrors.CodeAuthentication,
		},
		{
			name:   "500 on login stays transport",
			call:   login,
			status: http.StatusInternalServerError,
			want:   clienterrors.CodeTransport,
		},
		{
			name:   "404 on delete",
			call:   func(c *Client) error { return c.DeleteNote(context.Background(), "gone") },
			status: http.StatusNotFound,
			want:   clienterrors.CodeNotFound,
		},
		{
			name:   "409 on invite",
			call:   func(c *Client) error { _, err := c.InviteUser(context.Background(), "a@b.c", "member"); return err },
			status: http.StatusConflict,
			fields: response.Fields{"error": "User already exists"},
			want:   clienterrors.CodeConflict,
		},
		{
			name:   "500 on write is transport",
			call:   func(c *Client) error { return c.UpgradeTenant(context.Background(), "acme") },
			status: http.StatusInternalServerError,
			want:   clienterrors.CodeTransport,
		},
		{
			name:   "success false in 200",
			call:   func(c *Client) error { return c.UpgradeTenant(context.Background(), "acme") },
			status: http.StatusOK,
			raw:    `{"success":false,"error":"Only admins can upgrade"}`,
			want:   clienterrors.CodeAuthorization,
		},
		{
			name:   "undecodable body",
			call:   func(c *Client) error { return c.DeleteNote(context.Background(), "n1") },
			status: http.StatusOK,
			raw:    `<html>oops</html>`,
			want:   clienterrors.CodeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.raw != "" {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(tt.raw))
					return
				}
				response.JSON(w, tt.status, tt.fields, nil)
			})

			err := tt.call(client)
			require.Error(t, err)
			assert.Equal(t, tt.want, clienterrors.CodeOf(err))
		})
	}
}

func login(c *Client) error {
	_, _, err := c.Login(context.Background(), "a@b.c", "secret")
	return err
}

func createNote(c *Client) error {
	_, err := c.CreateNote(context.Background(), domain.NoteFields{Title: "t", Content: "c"})
	return err
}

func TestClient_ReadRetriedOnTransport(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			response.Error(w, http.StatusServiceUnavailable, "busy", nil)
			return
		}
		response.Data(w, http.StatusOK, map[string]any{"totalNotes": 1}, nil)
	})

	stats, err := client.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalNotes)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ReadRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		response.Error(w, http.StatusBadGateway, "", nil)
	})

	_, err := client.ListNotes(context.Background(), 1, "")
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ReadNotRetriedOnAuthentication(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		response.Unauthorized(w, "Invalid token", nil)
	})

	_, err := client.FetchProfile(context.Background())
	assert.ErrorIs(t, err, clienterrors.ErrAuthentication)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_WriteNeverRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		response.Error(w, http.StatusServiceUnavailable, "busy", nil)
	})

	err := createNote(client)
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: time.Second}, nil)
	err := client.DeleteNote(context.Background(), "n1")

	var clientErr *clienterrors.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, clienterrors.CodeTransport, clientErr.Code)
	assert.Equal(t, 0, clientErr.Status)
	assert.True(t, clientErr.Code.Retryable())
}

func TestClient_RateLimitedPerIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, nil, nil)
	})
	client.limiter = ratelimit.New(0.001, 1)

	require.NoError(t, client.DeleteNote(context.Background(), "n1"))

	// The delete bucket is empty now; a different intent is unaffected.
	require.NoError(t, client.UpgradeTenant(context.Background(), "acme"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.DeleteNote(ctx, "n2")
	assert.ErrorIs(t, err, clienterrors.ErrTransport)
}

func TestIntent_Idempotent(t *testing.T) {
	for _, i := range []Intent{IntentProfile, IntentListNotes, IntentStats} {
		assert.True(t, i.Idempotent(), i)
	}
	for _, i := range []Intent{IntentLogin, IntentCreateNote, IntentUpdateNote, IntentDeleteNote, IntentInvite, IntentUpgradeTenant} {
		assert.False(t, i.Idempotent(), i)
	}
}
