package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and rebuild the snapshot cache",
	}
	cmd.AddCommand(snapshotListCmd())
	cmd.AddCommand(snapshotRebuildCmd())
	return cmd
}

func snapshotListCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached snapshots for a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" {
				return fmt.Errorf("--world is required")
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			snapshots, err := service.ListSnapshots(ctx, worldID)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(os.Stdout, "No snapshots found.")
				return nil
			}
			for _, s := range snapshots {
				fmt.Fprintf(os.Stdout, "%s  markers=%d entities=%d relations=%d hash=%.12s\n",
					s.MarkerID, s.AppliedMarkerCount, s.EntityCount, s.RelationCount, s.StateHash)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	return cmd
}

func snapshotRebuildCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Drop and regenerate every snapshot for a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" {
				return fmt.Errorf("--world is required")
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			result, err := service.RebuildSnapshots(ctx, worldID)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Rebuilt %d snapshots across %d markers.\n", result.SnapshotCount, result.MarkerCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	return cmd
}
