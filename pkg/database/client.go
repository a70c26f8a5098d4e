// Package database provides the Postgres connection pool and embedded
// schema migrations backing taskstore, quotastore, and reportstore.
// Grounded on the teacher's pkg/database/client.go: open a pooled
// connection, run embedded migrations on startup, hand back a thin wrapper
// the rest of the process depends on instead of depending on pgx directly.
package database

import (
	stdsql "database/sql"
	"embed"
	"fmt"
	"io/fs"

	"context"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver, used only to drive migrations

	"github.com/quantmemo/memocore/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a pgx connection pool. Unlike the teacher's Ent-backed
// Client, this core has no generated ORM layer — taskstore, quotastore, and
// reportstore issue SQL directly against Pool, since their row-lock
// semantics (SELECT ... FOR UPDATE inside a transaction) need direct
// control that an ORM's query builder would only obscure.
type Client struct {
	Pool *pgxpool.Pool
}

// NewClient opens a pooled connection, verifies connectivity, and applies
// any pending embedded migrations before returning.
func NewClient(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	dsn := dsnFor(cfg)

	pool, err := pgxpool.New(ctx, dsn+fmt.Sprintf("&pool_max_conns=%d", maxConnsOrDefault(cfg.MaxOpenConns)))
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{Pool: pool}, nil
}

// Close releases the underlying pool.
func (c *Client) Close() {
	c.Pool.Close()
}

func dsnFor(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, sslModeOrDefault(cfg.SSLMode),
	)
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

func maxConnsOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

// runMigrations applies every pending embedded migration using
// golang-migrate over a plain database/sql connection (the pgx stdlib
// driver registered above), exactly the teacher's runMigrations shape:
// postgres.WithInstance + an iofs source built from the embedded FS.
func runMigrations(dsn string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "memocore", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver — calling m.Close() would also close db
	// through the postgres driver, which we still need for subsequent pool use.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > 4 && e.Name()[len(e.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
