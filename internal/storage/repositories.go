package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/recapturedocs/recapturedocs/internal/config"
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Dialect selects placeholder and column syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SnapshotRepository stores snapshots in a single snapshots table.
type SnapshotRepository struct {
	db      DB
	closer  func() error
	dialect Dialect
}

// OpenSQLite opens a SQLite database and prepares the snapshots table.
func OpenSQLite(ctx context.Context, cfg config.SQLiteConfig) (*SnapshotRepository, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	mode := cfg.JournalMode
	if mode == "" {
		mode = "WAL"
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s;", mode),
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	return newSnapshotRepository(ctx, db, DialectSQLite)
}

// OpenPostgres connects to Postgres and prepares the snapshots table.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*SnapshotRepository, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return newSnapshotRepository(ctx, db, DialectPostgres)
}

func newSnapshotRepository(ctx context.Context, db *sql.DB, dialect Dialect) (*SnapshotRepository, error) {
	r := &SnapshotRepository{db: db, closer: db.Close, dialect: dialect}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SnapshotRepository) migrate(ctx context.Context) error {
	blob := "BLOB"
	if r.dialect == DialectPostgres {
		blob = "BYTEA"
	}
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			data %s NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, blob)
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}
	return nil
}

// Save upserts the named snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, name string, data []byte) error {
	query := `
		INSERT INTO snapshots (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if r.dialect == DialectPostgres {
		query = `
		INSERT INTO snapshots (name, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	}
	if _, err := r.db.ExecContext(ctx, query, name, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return nil
}

// Load returns the named snapshot or ErrSnapshotNotFound.
func (r *SnapshotRepository) Load(ctx context.Context, name string) ([]byte, error) {
	query := `SELECT data FROM snapshots WHERE name = ?`
	if r.dialect == DialectPostgres {
		query = `SELECT data FROM snapshots WHERE name = $1`
	}
	var data []byte
	err := r.db.QueryRowContext(ctx, query, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	return data, nil
}

// Close closes the underlying database.
func (r *SnapshotRepository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
