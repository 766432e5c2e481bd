package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantnotes/notes-client/internal/api"
	"github.com/tenantnotes/notes-client/internal/app"
	clienterrors "github.com/tenantnotes/notes-client/internal/errors"
	"github.com/tenantnotes/notes-client/internal/events"
	"github.com/tenantnotes/notes-client/internal/logger"
	"github.com/tenantnotes/notes-client/internal/notestest"
	"github.com/tenantnotes/notes-client/internal/session"
	"github.com/tenantnotes/notes-client/internal/store"
)

// terminal runs each command in a fresh App sharing one token store, as
// separate invocations of the binary would.
type terminal struct {
	t      *testing.T
	srv    *notestest.Server
	tokens store.TokenStore
}

func newTerminal(t *testing.T) *terminal {
	return &terminal{t: t, srv: notestest.Start(t), tokens: store.NewMemory()}
}

func (term *terminal) run(args ...string) (string, error) {
	term.t.Helper()
	log := logger.Discard().Logger
	creds := session.NewCredentials()
	client := api.New(api.Options{BaseURL: term.srv.URL(), Timeout: 2 * time.Second}, creds)
	a := app.New(client, creds, term.tokens, events.NewBus(log), log)

	var out bytes.Buffer
	err := newCLI(a, &out).run(context.Background(), args)
	return out.String(), err
}

func (term *terminal) mustRun(args ...string) string {
	term.t.Helper()
	out, err := term.run(args...)
	require.NoError(term.t, err, "notes %v", args)
	return out
}

func TestCLI_SessionIsRemembered(t *testing.T) {
	term := newTerminal(t)

	out := term.mustRun("login", notestest.AcmeAdmin, notestest.Password)
	assert.Contains(t, out, "Signed in as admin@acme.test (admin) in Acme")

	out = term.mustRun("whoami")
	assert.Contains(t, out, "admin@acme.test (admin)")
	assert.Contains(t, out, "note limit 3")
	assert.Contains(t, out, "upgrade to pro")

	assert.Contains(t, term.mustRun("logout"), "Signed out.")

	_, err := term.run("whoami")
	assert.ErrorIs(t, err, clienterrors.ErrAuthentication)
	assert.Contains(t, describe(err), "notes login")
}

func TestCLI_NotesLifecycle(t *testing.T) {
	term := newTerminal(t)
	term.mustRun("login", notestest.AcmeMember, notestest.Password)

	assert.Contains(t, term.mustRun("list"), "No notes yet.")

	out := term.mustRun("create", "-title", "Standup", "-content", "notes from standup", "-tags", "team, daily")
	assert.Contains(t, out, "Created note ")

	out = term.mustRun("list", "-q", "standup")
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "team,daily")
	assert.Contains(t, out, "Page 1 of 1, 1 notes.")

	assert.Contains(t, term.mustRun("list", "-q", "nothing-matches"), `No notes match "nothing-matches"`)

	id := term.srv.SeedNote("acme", notestest.AcmeMember, "Draft")
	out = term.mustRun("edit", id, "-title", "Final", "-content", "done")
	assert.Contains(t, out, "Updated note "+id+": Final")

	assert.Contains(t, term.mustRun("delete", id), "Deleted note "+id)
	assert.Equal(t, 1, term.srv.NoteCount("acme"))
}

func TestCLI_QuotaSuggestsUpgrade(t *testing.T) {
	term := newTerminal(t)
	term.mustRun("login", notestest.AcmeAdmin, notestest.Password)
	for _, title := range []string{"one", "two"} {
		term.mustRun("create", "-title", title, "-content", title)
	}
	out := term.mustRun("create", "-title", "three", "-content", "three")
	assert.Contains(t, out, "Run `notes upgrade`")

	_, err := term.run("create", "-title", "four", "-content", "four")
	require.ErrorIs(t, err, clienterrors.ErrQuota)
	assert.Contains(t, describe(err), "notes upgrade")

	out = term.mustRun("upgrade")
	assert.Contains(t, out, "Acme is now on the pro plan.")

	term.mustRun("create", "-title", "four", "-content", "four")
	out = term.mustRun("stats")
	assert.Contains(t, out, "Notes:  4 total")
	assert.Contains(t, out, "note limit unlimited")
}

func TestCLI_AdminCommands(t *testing.T) {
	term := newTerminal(t)
	term.mustRun("login", notestest.AcmeMember, notestest.Password)

	_, err := term.run("invite", "new@acme.test")
	assert.ErrorIs(t, err, clienterrors.ErrAuthorization)
	_, err = term.run("upgrade")
	assert.ErrorIs(t, err, clienterrors.ErrAuthorization)
	assert.Equal(t, 0, term.srv.Hits(api.IntentInvite))
	assert.Equal(t, 0, term.srv.Hits(api.IntentUpgradeTenant))

	term.mustRun("login", notestest.AcmeAdmin, notestest.Password)
	out := term.mustRun("invite", "new@acme.test", "admin")
	assert.Contains(t, out, "Invited new@acme.test as admin.")
	assert.Contains(t, out, "Default password: "+notestest.Password)
}

func TestCLI_Status(t *testing.T) {
	term := newTerminal(t)
	assert.Contains(t, term.mustRun("status"), "Not signed in.")

	term.mustRun("login", notestest.GlobexMember, notestest.Password)
	term.srv.SeedNote("globex", notestest.GlobexAdmin, "Quarterly plan")

	out := term.mustRun("status")
	assert.Contains(t, out, "user@globex.test (member)")
	assert.Contains(t, out, "Notes:  1 total")
	assert.Contains(t, out, "Quarterly plan")
}

func TestCLI_Usage(t *testing.T) {
	term := newTerminal(t)

	_, err := term.run("frobnicate")
	assert.ErrorIs(t, err, errUsage)

	term.mustRun("login", notestest.AcmeMember, notestest.Password)
	_, err = term.run("delete")
	assert.ErrorIs(t, err, errUsage)
	_, err = term.run("create", "-title", "x", "stray")
	assert.ErrorIs(t, err, errUsage)

	var buf bytes.Buffer
	printUsage(&buf)
	assert.Contains(t, buf.String(), "invite <email> [admin|member]")
}
