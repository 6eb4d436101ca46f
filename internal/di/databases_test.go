package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/config"
	"github.com/aristath/magicfactory/internal/database"
)

func TestInitializeDatabases(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{DataDir: tmpDir}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.ResultsDB)
	assert.NotNil(t, container.CacheDB)
	assert.Equal(t, database.ProfileResults, container.ResultsDB.Profile())
	assert.Equal(t, database.ProfileCache, container.CacheDB.Profile())
	assert.Len(t, container.Databases(), 2)

	assert.FileExists(t, filepath.Join(tmpDir, "results.db"))
	assert.FileExists(t, filepath.Join(tmpDir, "cache.db"))
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	// A regular file where the data directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg := &config.Config{DataDir: filepath.Join(blocker, "data")}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, container)
}
