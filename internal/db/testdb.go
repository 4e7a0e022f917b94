package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB returns an in-memory database with the schema applied. It is
// closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return openTest(t, ":memory:")
}

// NewTestFile returns the path of a fresh on-disk database in the test's
// temporary directory, with the schema applied. Use OpenTestFile to reopen it.
func NewTestFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lostfound.sqlite3")
	openTest(t, path).Close()
	return path
}

// OpenTestFile opens an existing test database file.
func OpenTestFile(t *testing.T, path string) *sql.DB {
	t.Helper()
	return openTest(t, path)
}

func openTest(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
