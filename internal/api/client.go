// Package api is the HTTP client for the tenant notes server.
//
// Every method resolves to either a value or a categorized *errors.Error; the
// client never panics on a bad response and never reports success the server
// did not confirm.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tenantnotes/notes-client/internal/domain"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/http/response"
	"github.com/tenantnotes/notes-client/internal/id"
	"github.com/tenantnotes/notes-client/internal/ratelimit"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Resources is the set of server calls the rest of the client depends on.
type Resources interface {
	Login(ctx context.Context, email, password string) (string, *domain.Identity, error)
	FetchProfile(ctx context.Context) (*domain.Identity, error)
	ListNotes(ctx context.Context, page int, search string) (*domain.NotePage, error)
	CreateNote(ctx context.Context, fields domain.NoteFields) (*domain.Note, error)
	UpdateNote(ctx context.Context, noteID string, fields domain.NoteFields) (*domain.Note, error)
	DeleteNote(ctx context.Context, noteID string) error
	FetchStats(ctx context.Context) (*domain.Stats, error)
	InviteUser(ctx context.Context, email string, role domain.Role) (*domain.InviteNotice, error)
	UpgradeTenant(ctx context.Context, tenantSlug string) error
}

// TokenSource supplies the current bearer token, "" when signed out.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	PageLimit         int
	ReadRetryAttempts int
	RetryBaseDelay    time.Duration
	Limiter           *ratelimit.KeyedRateLimiter
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client implements Resources over HTTP.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	limiter        *ratelimit.KeyedRateLimiter
	logger         *slog.Logger
	pageLimit      int
	retryAttempts  int
	retryBaseDelay time.Duration
}

var _ Resources = (*Client)(nil)

// New creates a client. The token is read from tokens on every request.
func New(opts Options, tokens TokenSource) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 10
	}
	if opts.ReadRetryAttempts < 1 {
		opts.ReadRetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 250 * time.Millisecond
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0, 1)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	return &Client{
		baseURL:        opts.BaseURL,
		http:           opts.HTTPClient,
		tokens:         tokens,
		limiter:        opts.Limiter,
		logger:         opts.Logger,
		pageLimit:      opts.PageLimit,
		retryAttempts:  opts.ReadRetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// call describes one outbound request.
type call struct {
	intent Intent
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

// do performs c, retrying idempotent intents on transport failures.
// The returned envelope always has Success set.
func (cl *Client) do(ctx context.Context, c call) (*response.Envelope, error) {
	if err := cl.limiter.Wait(ctx, string(c.intent)); err != nil {
		return nil, clienterrors.Transport("request throttled", err)
	}

	if !c.intent.Idempotent() || cl.retryAttempts == 1 {
		return cl.attempt(ctx, c, 1)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cl.retryBaseDelay
	policy.MaxElapsedTime = 0
	retries := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(cl.retryAttempts-1)), ctx)

	var env *response.Envelope
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		env, err = cl.attempt(ctx, c, attempt)
		if err != nil && clienterrors.CodeOf(err) != clienterrors.CodeTransport {
			return backoff.Permanent(err)
		}
		return err
	}, retries)
	if err != nil {
		var clientErr *clienterrors.Error
		if !clienterrors.As(err, &clientErr) {
			// the context ended between attempts
			return nil, clienterrors.Transport("request cancelled", err)
		}
		return nil, err
	}
	return env, nil
}

// attempt sends the request once and classifies the outcome.
func (cl *Client) attempt(ctx context.Context, c call, attempt int) (*response.Envelope, error) {
	requestID := id.RequestID()
	start := time.Now()

	req, err := cl.newRequest(ctx, c, requestID)
	if err != nil {
		return nil, err
	}

	resp, err := cl.http.Do(req)
	if err != nil {
		cl.logger.Debug("api request failed",
			slog.String("intent", string(c.intent)),
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return nil, clienterrors.Transport("could not reach the server", err)
	}
	defer resp.Body.Close()

	env, decodeErr := response.Decode(resp.Body)

	cl.logger.Debug("api request",
		slog.String("intent", string(c.intent)),
		slog.String("method", c.method),
		slog.String("path", c.path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
		slog.Int("attempt", attempt),
		slog.Duration("duration", time.Since(start)))

	if decodeErr != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, classify(c.intent, resp.StatusCode, nil).WithCause(decodeErr)
		}
		return nil, clienterrors.Transport("malformed response from server", decodeErr).WithStatus(resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, classify(c.intent, resp.StatusCode, env)
	}
	return env, nil
}

func (cl *Client) newRequest(ctx context.Context, c call, requestID string) (*http.Request, error) {
	target := cl.baseURL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	var body *bytes.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return nil, clienterrors.Wrap(err, clienterrors.CodeInternal, "encode request body")
		}
		body = bytes.NewReader(data)
	}

	var (
		req *http.Request
		err error
	)
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, c.method, target, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, c.method, target, http.NoBody)
	}
	if err != nil {
		return nil, clienterrors.Wrap(err, clienterrors.CodeInternal, "build request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth {
		if token := cl.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// malformed reports a success envelope whose payload did not decode.
func malformed(intent Intent, err error) *clienterrors.Error {
	return clienterrors.Transport(fmt.Sprintf("malformed %s response", intent), err)
}

// Login exchanges credentials for a token and identity.
func (cl *Client) Login(ctx context.Context, email, password string) (string, *domain.Identity, error) {
	env, err := cl.do(ctx, call{
		intent: IntentLogin,
		method: http.MethodPost,
		path:   "/auth/login",
		body:   domain.LoginRequest{Email: email, Password: password},
	})
	if err != nil {
		return "", nil, err
	}
	if env.Token == "" {
		return "", nil, malformed(IntentLogin, fmt.Errorf("missing token"))
	}

	identity, err := decodeIdentity(env)
	if err != nil {
		return "", nil, malformed(IntentLogin, err)
	}
	return env.Token, identity, nil
}

// FetchProfile returns the identity behind the current token.
func (cl *Client) FetchProfile(ctx context.Context) (*domain.Identity, error) {
	env, err := cl.do(ctx, call{
		intent: IntentProfile,
		method: http.MethodGet,
		path:   "/auth/profile",
		auth:   true,
	})
	if err != nil {
		return nil, err
	}

	identity, err := decodeIdentity(env)
	if err != nil {
		return nil, malformed(IntentProfile, err)
	}
	return identity, nil
}

// decodeIdentity reads the user from the top level, data.user, or data itself.
func decodeIdentity(env *response.Envelope) (*domain.Identity, error) {
	var identity domain.Identity
	switch {
	case len(env.User) > 0:
		if err := env.DecodeUser(&identity); err != nil {
			return nil, err
		}
	case len(env.Data) > 0:
		var wrapped struct {
			User *domain.Identity `json:"user"`
		}
		if err := env.DecodeData(&wrapped); err != nil {
			return nil, err
		}
		if wrapped.User != nil {
			identity = *wrapped.User
		} else if err := env.DecodeData(&identity); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("missing user")
	}

	if identity.UserID == "" || identity.Email == "" {
		return nil, fmt.Errorf("incomplete user")
	}
	return &identity, nil
}

// ListNotes fetches one page of the tenant's notes.
func (cl *Client) ListNotes(ctx context.Context, page int, search string) (*domain.NotePage, error) {
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(cl.pageLimit))
	if search != "" {
		query.Set("search", search)
	}

	env, err := cl.do(ctx, call{
		intent: IntentListNotes,
		method: http.MethodGet,
		path:   "/notes",
		query:  query,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}

	var result domain.NotePage
	if err := env.DecodeData(&result); err != nil {
		return nil, malformed(IntentListNotes, err)
	}
	if result.Notes == nil {
		result.Notes = []domain.Note{}
	}
	return &result, nil
}

// notePayload is the data member of create and update responses.
type notePayload struct {
	Note *domain.Note `json:"note"`
}

func decodeNote(intent Intent, env *response.Envelope) (*domain.Note, error) {
	var payload notePayload
	if err := env.DecodeData(&payload); err != nil {
		return nil, malformed(intent, err)
	}
	if payload.Note == nil || payload.Note.ID == "" {
		return nil, malformed(intent, fmt.Errorf("missing note id"))
	}
	return payload.Note, nil
}

// CreateNote asks the server to create a note. A plan-limit rejection is a Quota error.
func (cl *Client) CreateNote(ctx context.Context, fields domain.NoteFields) (*domain.Note, error) {
	env, err := cl.do(ctx, call{
		intent: IntentCreateNote,
		method: http.MethodPost,
		path:   "/notes",
		body:   fields,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeNote(IntentCreateNote, env)
}

// UpdateNote replaces all editable fields of a note.
func (cl *Client) UpdateNote(ctx context.Context, noteID string, fields domain.NoteFields) (*domain.Note, error) {
	env, err := cl.do(ctx, call{
		intent: IntentUpdateNote,
		method: http.MethodPut,
		path:   "/notes/" + url.PathEscape(noteID),
		body:   fields,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeNote(IntentUpdateNote, env)
}

// DeleteNote removes a note.
func (cl *Client) DeleteNote(ctx context.Context, noteID string) error {
	_, err := cl.do(ctx, call{
		intent: IntentDeleteNote,
		method: http.MethodDelete,
		path:   "/notes/" + url.PathEscape(noteID),
		auth:   true,
	})
	return err
}

// FetchStats returns the server's current figures for the tenant.
func (cl *Client) FetchStats(ctx context.Context) (*domain.Stats, error) {
	env, err := cl.do(ctx, call{
		intent: IntentStats,
		method: http.MethodGet,
		path:   "/notes/stats",
		auth:   true,
	})
	if err != nil {
		return nil, err
	}

	var stats domain.Stats
	if err := env.DecodeData(&stats); err != nil {
		return nil, malformed(IntentStats, err)
	}
	stats.Subscription = stats.Subscription.Normalize()
	if stats.NotesByUser == nil {
		stats.NotesByUser = []domain.UserNoteCount{}
	}
	return &stats, nil
}

// InviteUser adds a member to the caller's tenant. The returned notice carries the
// server-issued default password.
func (cl *Client) InviteUser(ctx context.Context, email string, role domain.Role) (*domain.InviteNotice, error) {
	if role == "" {
		role = domain.RoleMember
	}
	env, err := cl.do(ctx, call{
		intent: IntentInvite,
		method: http.MethodPost,
		path:   "/auth/invite",
		body:   domain.InviteRequest{Email: email, Role: role},
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return &domain.InviteNotice{
		Email:           email,
		Role:            role,
		DefaultPassword: env.DefaultPassword,
	}, nil
}

// UpgradeTenant moves the tenant to the pro plan.
func (cl *Client) UpgradeTenant(ctx context.Context, tenantSlug string) error {
	_, err := cl.do(ctx, call{
		intent: IntentUpgradeTenant,
		method: http.MethodPost,
		path:   "/tenants/" + url.PathEscape(tenantSlug) + "/upgrade",
		auth:   true,
	})
	return err
}
