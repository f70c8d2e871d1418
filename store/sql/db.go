package sql

import (
	stdsql "database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Open connects to a SQLite database at path using modernc.org/sqlite
// (pure Go, no cgo), configured for WAL mode and a 5 second
// busy_timeout so concurrent workers block briefly on contention
// rather than failing with SQLITE_BUSY. path may be a filesystem path
// or ":memory:" for an ephemeral in-process database; Open adds the
// "file:" prefix itself.
//
// The returned *bun.DB has its connection pool capped at a single
// connection: SQLite allows only one writer at a time regardless of
// WAL mode, and a wider pool only moves contention from busy_timeout
// retries to connection-pool waits.
func Open(path string) (*bun.DB, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}
