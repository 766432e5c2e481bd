// Package config provides client configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Session backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds the client configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	API     APIConfig
	Notes   NotesConfig
	Session SessionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// APIConfig describes how the notes server is reached.
type APIConfig struct {
	BaseURL           string
	Timeout           time.Duration // per request (default: 10s)
	ReadRetryAttempts int           // attempts for idempotent reads, 1 disables retry (default: 3)
	RPS               float64       // outbound requests per second per intent, 0 = unlimited (default: 5)
	Burst             int           // (default: 10)
}

// NotesConfig holds list-notes settings.
type NotesConfig struct {
	PageLimit int // notes per page (default: 10)
}

// SessionConfig selects where the bearer token survives restarts.
type SessionConfig struct {
	Backend string // badger, sqlite or memory (default: badger)
	Path    string // badger directory or sqlite file (default: ~/.notes-client/session[.db])
}

// LoadConfig loads configuration from os.Args. See Load.
func LoadConfig() (*Config, []string, error) {
	return Load(os.Args[1:])
}

// Load builds the configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// The positional arguments left after flag parsing are returned unchanged.
func Load(args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet("notes", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	baseURL := fs.String("api-url", "", "Base URL of the notes API (required)")
	timeout := fs.String("api-timeout", "", "Per-request timeout (default: 10s)")
	retries := fs.String("read-retries", "", "Attempts for read requests (default: 3)")
	rps := fs.String("api-rps", "", "Outbound requests per second per intent (default: 5)")
	burst := fs.String("api-burst", "", "Outbound burst size (default: 10)")
	pageLimit := fs.String("page-limit", "", "Notes per page (default: 10)")
	backend := fs.String("session-backend", "", "Token storage: badger, sqlite or memory (default: badger)")
	sessionPath := fs.String("session-path", "", "Token storage location")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		API: APIConfig{
			BaseURL:           strings.TrimRight(getConfigValue(*baseURL, "API_BASE_URL", ""), "/"),
			ReadRetryAttempts: getIntConfigValue(*retries, "READ_RETRY_ATTEMPTS", 3),
			RPS:               getFloatConfigValue(*rps, "API_RPS", 5),
			Burst:             getIntConfigValue(*burst, "API_BURST", 10),
		},
		Notes: NotesConfig{
			PageLimit: getIntConfigValue(*pageLimit, "NOTES_PAGE_LIMIT", 10),
		},
		Session: SessionConfig{
			Backend: strings.ToLower(getConfigValue(*backend, "SESSION_BACKEND", BackendBadger)),
			Path:    getConfigValue(*sessionPath, "SESSION_PATH", ""),
		},
	}

	timeoutStr := getConfigValue(*timeout, "API_TIMEOUT", "10s")
	timeoutDuration, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid api timeout %q: %w", timeoutStr, err)
	}
	cfg.API.Timeout = timeoutDuration

	if err := cfg.expandSessionPath(); err != nil {
		return nil, nil, fmt.Errorf("invalid session path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.API.BaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q: must be an absolute http(s) URL", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.API.ReadRetryAttempts < 1 {
		return errors.New("read retry attempts must be at least 1")
	}
	if c.API.RPS < 0 {
		return errors.New("api rps cannot be negative")
	}
	if c.Notes.PageLimit < 1 {
		return errors.New("notes page limit must be at least 1")
	}

	switch c.Session.Backend {
	case BackendBadger, BackendSQLite:
		if c.Session.Path == "" {
			return errors.New("session path cannot be empty after expansion")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid session backend: %s (must be badger, sqlite, or memory)", c.Session.Backend)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandSessionPath resolves the token storage location.
// Defaults to ~/.notes-client/session (a directory for badger, a file with .db for sqlite).
func (c *Config) expandSessionPath() error {
	if c.Session.Backend == BackendMemory {
		return nil
	}

	var defaultPath string
	if c.Session.Path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		defaultPath = filepath.Join(homeDir, ".notes-client", "session")
		if c.Session.Backend == BackendSQLite {
			defaultPath += ".db"
		}
	}

	expanded, err := expandPath(c.Session.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Session.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
