package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// dsnParams are handed to the driver, which applies them on every new
// connection: WAL, NORMAL sync and a five second busy wait.
const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

// migrations[v] moves a database from user_version v-1 to v. Index 0 is the
// base schema in schema.sql.
var migrations = []string{
	1: `CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id, seq)`,
}

// Journal is a durable event log.
type Journal struct {
	db *sql.DB
}

// Open opens the journal at path, creating and upgrading it as needed.
// Reopening an existing journal leaves its entries untouched.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one connection: a single writer, and pragmas that stick
	db.SetMaxOpenConns(1)

	if err := upgrade(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func upgrade(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("base schema: %w", err)
	}
	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version + 1; v < len(migrations); v++ {
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
	}
	if version < len(migrations)-1 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations)-1)); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return tx.Commit()
}

// pragma reads a single pragma value.
func (j *Journal) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := j.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
