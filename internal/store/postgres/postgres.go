// Package postgres implements the store interfaces using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store provides PostgreSQL-backed implementations of all repositories.
type Store struct {
	db *sql.DB

	// visibility is the lease duration applied to received queue messages.
	visibility time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithVisibilityTimeout overrides the default queue lease duration.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.visibility = d
		}
	}
}

// DefaultVisibilityTimeout is how long a received queue message stays
// invisible to other consumers before it is redelivered. It exceeds the
// default job timeout so a healthy run is never redelivered mid-flight;
// the worker heartbeat covers runs configured longer than this.
const DefaultVisibilityTimeout = 15 * time.Minute

// New creates a new PostgreSQL store and verifies the connection.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, visibility: DefaultVisibilityTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB exposes the underlying connection pool, used by the migrator.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks database connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
