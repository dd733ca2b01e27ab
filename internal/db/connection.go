// Package db is the PostgreSQL backend for callboard. It owns the schema,
// serves paged record listings and stats, and applies row actions inside
// transactions that also append to an action log.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imgajeed76/callboard/internal/source"
	"github.com/imgajeed76/callboard/internal/util"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB holds the database connection pool
type DB struct {
	pool   *pgxpool.Pool
	url    string
	mu     sync.RWMutex
	logger *zap.Logger
	actor  string // recorded in the action log
}

var _ source.Source = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for query tracing.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithActor sets the user recorded against actions.
func WithActor(actor string) Option {
	return func(db *DB) { db.actor = actor }
}

// Connect establishes a connection to the database with a connection pool
func Connect(ctx context.Context, url string, opts ...Option) (*DB, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URL: %w", err)
	}

	// A dashboard issues a handful of concurrent queries at most: the page,
	// its count, and the stats fan-out.
	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 5 * time.Minute

	return open(ctx, url, config, opts)
}

// ConnectLite establishes a single-connection pool for quick checks such as
// doctor.
func ConnectLite(ctx context.Context, url string, opts ...Option) (*DB, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URL: %w", err)
	}

	config.MaxConns = 1
	config.MinConns = 0
	config.MaxConnLifetime = time.Minute
	config.MaxConnIdleTime = 10 * time.Second

	return open(ctx, url, config, opts)
}

func open(ctx context.Context, url string, config *pgxpool.Config, opts []Option) (*DB, error) {
	db := &DB{url: url, logger: zap.NewNop(), actor: "callboard"}
	for _, opt := range opts {
		opt(db)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.pool = pool
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
}

// Exec executes a query without returning rows
func (db *DB) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := db.pool.Exec(ctx, sql, args...)
	return err
}

// Query executes a query and returns rows
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// QueryRow executes a query and returns a single row
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// URL returns the connection URL
func (db *DB) URL() string {
	return db.url
}

// IsConnected returns true if the database is connected
func (db *DB) IsConnected() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pool != nil
}

// Ping tests the database connection
func (db *DB) Ping(ctx context.Context) error {
	if !db.IsConnected() {
		return util.ErrNotConnected
	}
	return db.pool.Ping(ctx)
}
