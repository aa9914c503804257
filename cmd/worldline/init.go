package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"worldline/internal/config"
)

func initCmd() *cobra.Command {
	var projectName string
	var driver string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new worldline project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName, driver, dsn)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "Database driver (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "sqlite://worldline.db", "Database connection string")
	return cmd
}

func runInit(projectName, driver, dsn string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	contents := fmt.Sprintf("project: %s\nversion: 1\n\ndatabase:\n  driver: %s\n  dsn: %s\n\ntimeline:\n  use_snapshots: true\n\nmetrics:\n  listen: \"\"\n", projectName, driver, dsn)
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	ctx := context.Background()
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	return db.EnsureSchema(ctx)
}
