package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrKeyStoreNotReady signals that the key store has not been loaded yet.
	// This happens during startup while Postgres is still unreachable.
	ErrKeyStoreNotReady = errors.New("api key store not ready")
)

// KeyStore caches API keys and their per-key flyer rate limits in memory.
// Keys are optional: anonymous callers are only subject to the user limiter.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]int

	dbMu sync.Mutex
	dsn  string
	db   *sql.DB
}

// NewKeyStore returns an empty, not yet ready store.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// keyStoreDSN builds the pgx URL for the key table. A host that is already a
// postgres URL is used unchanged.
func keyStoreDSN(cfg PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	for _, f := range []struct{ name, value string }{
		{"host", cfg.Host},
		{"database", cfg.Database},
		{"user", cfg.User},
	} {
		if f.value == "" {
			return "", fmt.Errorf("postgres %s is empty", f.name)
		}
	}

	host, port := strings.Trim(cfg.Host, "[]"), "5432"
	if cfg.Port != 0 {
		port = strconv.Itoa(cfg.Port)
	}
	if h, p, err := net.SplitHostPort(cfg.Host); err == nil {
		host, port = h, p
	}

	dsn := url.URL{Scheme: "postgres", Host: net.JoinHostPort(host, port), Path: "/" + cfg.Database}
	dsn.User = url.User(cfg.User)
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return dsn.String(), nil
}

func (s *KeyStore) conn(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	dsn, err := keyStoreDSN(cfg)
	if err != nil {
		return nil, err
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db != nil && s.dsn == dsn {
		return s.db, nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
		s.dsn = ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Small control-plane table, read once a minute.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.db = db
	s.dsn = dsn
	return s.db, nil
}

const apiKeysDDL = `CREATE TABLE IF NOT EXISTS api_keys (
	key TEXT PRIMARY KEY,
	flyers_per_interval INTEGER NOT NULL DEFAULT 30,
	owner TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// LoadFromPostgres replaces the cached keys with the contents of the api_keys table.
// On error the previous cache is kept.
func (s *KeyStore) LoadFromPostgres(ctx context.Context, cfg PostgresConfig) error {
	db, err := s.conn(ctx, cfg)
	if err != nil {
		return err
	}
	return s.loadFrom(ctx, db)
}

func (s *KeyStore) loadFrom(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, apiKeysDDL); err != nil {
		return fmt.Errorf("ensure api_keys schema: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT key, flyers_per_interval FROM api_keys;`)
	if err != nil {
		return err
	}
	defer rows.Close()

	keys := make(map[string]int)
	for rows.Next() {
		var key string
		var limit int
		if err := rows.Scan(&key, &limit); err != nil {
			return err
		}
		keys[key] = limit
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

// LoadFromMap replaces the cached keys. Used by tests and local runs without Postgres.
func (s *KeyStore) LoadFromMap(m map[string]int) {
	keys := make(map[string]int, len(m))
	for k, v := range m {
		keys[k] = v
	}
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
}

// Ready returns true once the store has been loaded at least once.
func (s *KeyStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys != nil
}

// Valid reports whether key is known.
func (s *KeyStore) Valid(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// RateLimit returns the flyer limit for key, or 0 (no key limit) when unknown.
func (s *KeyStore) RateLimit(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[key]
}

// RefreshPeriodically reloads keys from Postgres every interval until stop is closed.
func (s *KeyStore) RefreshPeriodically(cfg PostgresConfig, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.LoadFromPostgres(context.Background(), cfg); err != nil {
				Error("Failed to reload API keys", "error", err)
			}
		case <-stop:
			return
		}
	}
}

// Close releases the database handle, if any.
func (s *KeyStore) Close() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.dsn = ""
	return err
}
