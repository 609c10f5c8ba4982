// Package sqlite opens local sqlite databases.
package sqlite

import (
	"context"
	"database/sql"

	errors "github.com/Laisky/errors/v2"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDSN is the database file used when none is configured.
const DefaultDSN = "file:texpad.db?cache=shared"

// NewDB opens dsn with foreign keys enforced.
func NewDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	return db, nil
}
