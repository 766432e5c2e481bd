package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "API_BASE_URL", "API_TIMEOUT", "READ_RETRY_ATTEMPTS",
		"API_RPS", "API_BURST", "NOTES_PAGE_LIMIT", "SESSION_BACKEND", "SESSION_PATH",
	} {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) string {
	t.Helper()
	return "-env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "http://localhost:5000/api/")

	cfg, rest, err := Load([]string{noEnvFile(t), "-session-backend=memory", "list", "2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "2"}, rest)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.ReadRetryAttempts)
	assert.InDelta(t, 5.0, cfg.API.RPS, 0.001)
	assert.Equal(t, 10, cfg.API.Burst)
	assert.Equal(t, 10, cfg.Notes.PageLimit)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.Empty(t, cfg.Session.Path)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "http://env.example")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("NOTES_PAGE_LIMIT", "25")

	cfg, _, err := Load([]string{
		noEnvFile(t),
		"-api-url=https://flag.example/api",
		"-log-level=debug",
		"-api-timeout=3s",
		"-session-backend=memory",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example/api", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 25, cfg.Notes.PageLimit)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	sessionPath := filepath.Join(dir, "tokens.db")
	content := "# notes client\nAPI_BASE_URL=\"http://file.example\"\nSESSION_BACKEND=sqlite\nSESSION_PATH=" + sessionPath + "\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	cfg, _, err := Load([]string{"-env-file=" + envPath})
	require.NoError(t, err)

	assert.Equal(t, "http://file.example", cfg.API.BaseURL)
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, sessionPath, cfg.Session.Path)
}

func TestLoad_DefaultSessionPath(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("API_BASE_URL", "http://localhost:5000")

	cfg, _, err := Load([]string{noEnvFile(t), "-session-backend=sqlite"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".notes-client", "session.db"), cfg.Session.Path)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "http://localhost:5000")

	_, _, err := Load([]string{noEnvFile(t), "-api-timeout=soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api timeout")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:    AppConfig{Environment: "development"},
			Logger: LoggerConfig{Level: "info"},
			API: APIConfig{
				BaseURL:           "http://localhost:5000/api",
				Timeout:           time.Second,
				ReadRetryAttempts: 3,
				RPS:               5,
				Burst:             10,
			},
			Notes:   NotesConfig{PageLimit: 10},
			Session: SessionConfig{Backend: BackendBadger, Path: "/tmp/session"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad env", mutate: func(c *Config) { c.App.Environment = "qa" }, wantErr: "invalid environment"},
		{name: "bad level", mutate: func(c *Config) { c.Logger.Level = "loud" }, wantErr: "invalid log level"},
		{name: "missing url", mutate: func(c *Config) { c.API.BaseURL = "" }, wantErr: "API_BASE_URL is required"},
		{name: "relative url", mutate: func(c *Config) { c.API.BaseURL = "/api" }, wantErr: "invalid API_BASE_URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "timeout"},
		{name: "zero retries", mutate: func(c *Config) { c.API.ReadRetryAttempts = 0 }, wantErr: "retry"},
		{name: "negative rps", mutate: func(c *Config) { c.API.RPS = -1 }, wantErr: "rps"},
		{name: "zero page limit", mutate: func(c *Config) { c.Notes.PageLimit = 0 }, wantErr: "page limit"},
		{name: "unknown backend", mutate: func(c *Config) { c.Session.Backend = "redis" }, wantErr: "invalid session backend"},
		{name: "badger needs path", mutate: func(c *Config) { c.Session.Path = "" }, wantErr: "session path"},
		{name: "memory needs no path", mutate: func(c *Config) {
			c.Session.Backend = BackendMemory
			c.Session.Path = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/notes", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}
