package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantnotes/notes-client/internal/config"
	"github.com/tenantnotes/notes-client/internal/notestest"
)

func load(t *testing.T, args ...string) *config.Config {
	t.Helper()
	base := []string{"-env", "development", "-log-level", "error", "-env-file", filepath.Join(t.TempDir(), "missing.env")}
	cfg, _, err := config.Load(append(base, args...))
	require.NoError(t, err)
	return cfg
}

func TestBootstrap_TokenSurvivesRestart(t *testing.T) {
	srv := notestest.Start(t)

	for _, backend := range []string{config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session")
			cfg := load(t, "-api-url", srv.URL(), "-session-backend", backend, "-session-path", path)

			injector := NewContainer(cfg)
			handle, err := Bootstrap(injector)
			require.NoError(t, err)

			_, err = handle.Session.Login(context.Background(), notestest.AcmeMember, notestest.Password)
			require.NoError(t, err)
			injector.Shutdown()

			injector = NewContainer(cfg)
			handle, err = Bootstrap(injector)
			require.NoError(t, err)
			defer injector.Shutdown()

			identity, err := handle.Start(context.Background())
			require.NoError(t, err)
			require.NotNil(t, identity)
			assert.Equal(t, notestest.AcmeMember, identity.Email)
		})
	}
}

func TestBootstrap_MemoryBackendForgets(t *testing.T) {
	srv := notestest.Start(t)
	cfg := load(t, "-api-url", srv.URL(), "-session-backend", "memory")

	injector := NewContainer(cfg)
	handle, err := Bootstrap(injector)
	require.NoError(t, err)
	_, err = handle.Session.Login(context.Background(), notestest.AcmeAdmin, notestest.Password)
	require.NoError(t, err)
	sub := handle.Events.Subscribe()
	injector.Shutdown()

	_, open := <-sub.Events
	assert.False(t, open, "shutdown closes the app")

	injector = NewContainer(cfg)
	handle, err = Bootstrap(injector)
	require.NoError(t, err)
	defer injector.Shutdown()

	identity, err := handle.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
}
