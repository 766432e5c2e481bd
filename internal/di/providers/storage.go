package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/tenantnotes/notes-client/internal/config"
	"github.com/tenantnotes/notes-client/internal/logger"
	"github.com/tenantnotes/notes-client/internal/store"
	"github.com/tenantnotes/notes-client/internal/store/sqlite"
)

// ProvideTokenStore provides the configured session token store.
// It is closed by the App, not by the container.
func ProvideTokenStore(i do.Injector) (store.TokenStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeLog := log.Component("store")

	switch cfg.Session.Backend {
	case config.BackendMemory:
		log.Debug("Token store initialized", "backend", cfg.Session.Backend)
		return store.NewMemory(), nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Session.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
		db, err := sqlite.Open(cfg.Session.Path, storeLog)
		if err != nil {
			return nil, fmt.Errorf("sqlite token store: %w", err)
		}
		log.Debug("Token store initialized", "backend", cfg.Session.Backend, "path", cfg.Session.Path)
		return db, nil

	default:
		db, err := store.NewBadger(cfg.Session.Path, storeLog)
		if err != nil {
			return nil, fmt.Errorf("badger token store: %w", err)
		}
		log.Debug("Token store initialized", "backend", cfg.Session.Backend, "path", cfg.Session.Path)
		return db, nil
	}
}
