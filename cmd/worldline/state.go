package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	var worldID string
	var markerID string
	var noSnapshot bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Project the world's entities and relations at a timeline point",
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

			state, err := service.GetWorldState(ctx, worldID, markerID, !noSnapshot)
			if err != nil {
				return err
			}

			point := "present"
			if state.MarkerID != "" {
				point = state.MarkerID
			}
			fmt.Fprintf(os.Stdout, "World %s at %s (%d markers applied)\n", state.WorldID, point, state.AppliedMarkerCount)
			if state.FromSnapshotMarkerID != "" {
				fmt.Fprintf(os.Stdout, "Nearest snapshot: %s\n", state.FromSnapshotMarkerID)
			}
			fmt.Fprintln(os.Stdout, "")

			if len(state.Entities) == 0 {
				fmt.Fprintln(os.Stdout, "No entities.")
			} else {
				fmt.Fprintf(os.Stdout, "Entities (%d):\n", len(state.Entities))
				for _, e := range state.Entities {
					existence := ""
					if !e.ExistsAtMarker {
						existence = " [not yet / no longer]"
					}
					fmt.Fprintf(os.Stdout, "  %s (%s, %s)%s\n", e.Name, e.Type, e.Status, existence)
				}
			}

			if len(state.Relations) > 0 {
				fmt.Fprintf(os.Stdout, "\nRelations (%d):\n", len(state.Relations))
				for _, r := range state.Relations {
					existence := ""
					if !r.ExistsAtMarker {
						existence = " [not yet / no longer]"
					}
					fmt.Fprintf(os.Stdout, "  %s -[%s]-> %s%s\n", r.SourceEntityID, r.Type, r.TargetEntityID, existence)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().StringVar(&markerID, "marker", "", "Project as of this marker; empty means present")
	cmd.Flags().BoolVar(&noSnapshot, "no-snapshot", false, "Force full replay instead of the snapshot cache")
	return cmd
}
