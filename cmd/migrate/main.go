package main

import (
	"context"
	"fmt"
	"log"
	mongoMigration "poolsched/internal/migrations/mongo"
	sqliteMigration "poolsched/internal/migrations/sqlite"
	"poolsched/pkg/config"
	"time"
)

const JobName = "poolsched-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	cfg := config.Load(JobName)
	defer cfg.GracefulShutdown()

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		cfg.SetSQLite()
		cfg.Log.Info("Starting SQLite migration job", "path", cfg.SQLitePath)
		migrateSQLite(ctx, cfg)
	case config.BackendMongo:
		cfg.SetMongo()
		cfg.Log.Info("Starting Mongo migration job")
		migrateMongo(ctx, cfg)
	default:
		cfg.Log.Info("Nothing to migrate", "store_backend", cfg.StoreBackend)
		return
	}
	fmt.Println("Migration completed successfully.")
}

func migrateSQLite(ctx context.Context, cfg *config.Config) {
	if err := sqliteMigration.RunMigration(ctx, cfg.Client.SQLite); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}
