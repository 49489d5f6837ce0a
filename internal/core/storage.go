package core

import (
	"fmt"

	"themecore/internal/infra/persistence/memory"
	"themecore/internal/infra/persistence/postgres"
	"themecore/internal/infra/persistence/sqlite"

	env "github.com/caarlos0/env/v11"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	// StorageMemory keeps state in process memory only (tests / ephemeral).
	StorageMemory StorageDriver = "memory"
	// StorageSQLite snapshots state to an embedded sqlite file.
	StorageSQLite StorageDriver = "sqlite"
	// StoragePostgres snapshots state to a PostgreSQL server.
	StoragePostgres StorageDriver = "postgres"
)

// StorageConfig selects the persistence backend from environment variables.
type StorageConfig struct {
	Driver      string `env:"THEMECORE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"THEMECORE_SQLITE_PATH"`
	PostgresDSN string `env:"THEMECORE_POSTGRES_DSN"`
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	THEMECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	THEMECORE_SQLITE_PATH: path to sqlite file (default ./themecore.db)
//	THEMECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	cfg, err := env.ParseAs[StorageConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse storage config: %w", err)
	}
	return OpenPersistentStoreWith(cfg, engine)
}

// OpenPersistentStoreWith constructs the store described by cfg.
func OpenPersistentStoreWith(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	switch StorageDriver(cfg.Driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
