package main

import (
	"context"
	"fmt"

	"worldline/internal/config"
	"worldline/internal/store"
	"worldline/internal/store/postgres"
	"worldline/internal/store/sqlite"
	"worldline/internal/timeline"
)

const configPath = "worldline.yaml"

func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN)
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN)
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
}

// openService loads the project config and wires a service over the
// configured store. The caller owns closing the returned store.
func openService(ctx context.Context) (*timeline.Service, store.Store, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return timeline.NewService(db, nil, cfg.Timeline.UseSnapshots), db, nil
}
