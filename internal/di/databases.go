package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/config"
	"github.com/aristath/magicfactory/internal/database"
)

// InitializeDatabases initializes both databases and runs their migrations
// Returns container with databases populated, or error if initialization fails
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		// results.db - search runs and their rows (durable)
		{database.ResultsName, database.ProfileResults, &container.ResultsDB},
		// cache.db - memoised factory estimates (rebuildable)
		{database.CacheName, database.ProfileCache, &container.CacheDB},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(spec.name),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			closeAll(container)
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target = db
	}

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			closeAll(container)
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func closeAll(container *Container) {
	for _, db := range container.Databases() {
		db.Close()
	}
}
