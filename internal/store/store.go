// Package store persists the session bearer token between client runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// TokenStore keeps the single bearer token of the local session.
// LoadToken returns "" and a nil error when nothing is stored.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
	Close() error
}

// tokenKey is the badger key holding the persisted session.
var tokenKey = []byte("session:token")

// tokenRecord is the value stored under tokenKey.
type tokenRecord struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// BadgerTokenStore wraps a Badger database instance.
type BadgerTokenStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadger opens (or creates) the token database at path.
func NewBadger(path string, logger *slog.Logger) (*BadgerTokenStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // A lost write means an unexpected sign-out
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return openBadger(opts, logger)
}

// NewBadgerInMemory opens a badger store that never touches disk.
func NewBadgerInMemory(logger *slog.Logger) (*BadgerTokenStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts, logger)
}

func openBadger(opts badger.Options, logger *slog.Logger) (*BadgerTokenStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("token store opened", "backend", "badger", "path", opts.Dir)
	return &BadgerTokenStore{db: db, logger: logger}, nil
}

// LoadToken returns the persisted token, or "" if none.
func (s *BadgerTokenStore) LoadToken(_ context.Context) (string, error) {
	var rec tokenRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return rec.Token, nil
}

// SaveToken replaces the persisted token.
func (s *BadgerTokenStore) SaveToken(_ context.Context, token string) error {
	data, err := json.Marshal(tokenRecord{Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tokenKey, data)
	}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ClearToken removes the persisted token. Clearing an empty store is not an error.
func (s *BadgerTokenStore) ClearToken(_ context.Context) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(tokenKey)
	}); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Close gracefully closes the database connection.
func (s *BadgerTokenStore) Close() error {
	s.logger.Debug("closing token store", "backend", "badger")
	return s.db.Close()
}

// MemoryTokenStore keeps the token for the lifetime of the process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemory creates an empty in-process token store.
func NewMemory() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// LoadToken implements TokenStore.
func (s *MemoryTokenStore) LoadToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SaveToken implements TokenStore.
func (s *MemoryTokenStore) SaveToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// ClearToken implements TokenStore.
func (s *MemoryTokenStore) ClearToken(_ context.Context) error {
	return s.SaveToken(context.Background(), "")
}

// Close implements TokenStore.
func (s *MemoryTokenStore) Close() error { return nil }

var (
	_ TokenStore = (*BadgerTokenStore)(nil)
	_ TokenStore = (*MemoryTokenStore)(nil)
)
