package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Open opens and pings the SQLite database at path. In-memory databases are
// limited to a single connection so that every query sees the same database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %q: %w", path, err)
	}
	return db, nil
}
