// Package testing provides testing utilities and helpers for the magicfactory project.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/magicfactory/internal/database"
)

// NewTestDB creates a file-backed SQLite database in the test's temp directory
// and applies the schema registered for name.
//
// Supported schema names:
//   - "results" - applies results_schema.sql
//   - "cache" - applies cache_schema.sql
//   - Unknown names - creates empty database (no schema applied)
//
// The database is closed when the test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	profile := database.ProfileResults
	if name == database.CacheName {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name)),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}

// NewTestDBWithSchema creates an empty test database and executes schema on it.
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name)),
		Name: "",
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}
	return db
}
