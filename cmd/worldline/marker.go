package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"worldline/internal/timeline"
)

func markerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Manage timeline markers",
	}
	cmd.AddCommand(markerListCmd())
	cmd.AddCommand(markerAddCmd())
	cmd.AddCommand(markerMoveCmd())
	cmd.AddCommand(markerRmCmd())
	return cmd
}

func markerListCmd() *cobra.Command {
	var worldID string
	var withOps bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a world's markers in timeline order",
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

			markers, err := service.ListMarkers(ctx, worldID, withOps)
			if err != nil {
				return err
			}
			if len(markers) == 0 {
				fmt.Fprintln(os.Stdout, "No markers found.")
				return nil
			}
			for _, m := range markers {
				label := m.DateLabel
				if label == "" {
					label = m.MarkerKind
				}
				fmt.Fprintf(os.Stdout, "%-10.1f %s  %s (%s, %s)\n", m.SortKey, m.ID, m.Title, label, m.PlacementStatus)
				for _, op := range m.Operations {
					fmt.Fprintf(os.Stdout, "  [%d] %s %s %s\n", op.OrderIndex, op.OpType, op.TargetKind, op.TargetID)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().BoolVar(&withOps, "ops", false, "Include each marker's operations")
	return cmd
}

func markerAddCmd() *cobra.Command {
	var worldID string
	var title string
	var summary string
	var kind string
	var dateLabel string
	var dateSortValue float64
	var sortKey float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a timeline marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" {
				return fmt.Errorf("--world is required")
			}
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title is required")
			}

			in := timeline.MarkerCreate{
				Title:      title,
				Summary:    summary,
				MarkerKind: kind,
				DateLabel:  dateLabel,
			}
			if cmd.Flags().Changed("date-sort-value") {
				in.DateSortValue = &dateSortValue
			}
			if cmd.Flags().Changed("sort-key") {
				in.SortKey = &sortKey
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			marker, err := service.CreateMarker(ctx, worldID, in, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Created marker %s at sort key %g.\n", marker.ID, marker.SortKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().StringVar(&title, "title", "", "Marker title")
	cmd.Flags().StringVar(&summary, "summary", "", "What happens at this point")
	cmd.Flags().StringVar(&kind, "kind", "explicit", "Marker kind (explicit or semantic)")
	cmd.Flags().StringVar(&dateLabel, "date-label", "", "Human-readable in-fiction date")
	cmd.Flags().Float64Var(&dateSortValue, "date-sort-value", 0, "Numeric in-fiction date")
	cmd.Flags().Float64Var(&sortKey, "sort-key", 0, "Explicit timeline position")
	return cmd
}

func markerMoveCmd() *cobra.Command {
	var worldID string
	var sortKey float64
	cmd := &cobra.Command{
		Use:   "move <marker-id>",
		Short: "Reposition a marker on the timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" {
				return fmt.Errorf("--world is required")
			}
			if !cmd.Flags().Changed("sort-key") {
				return fmt.Errorf("--sort-key is required")
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			marker, err := service.RepositionMarker(ctx, worldID, args[0], sortKey, "", true)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Moved marker %s to sort key %g.\n", marker.ID, marker.SortKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().Float64Var(&sortKey, "sort-key", 0, "New timeline position")
	return cmd
}

func markerRmCmd() *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "rm <marker-id>",
		Short: "Delete a marker and its operations",
		Args:  cobra.ExactArgs(1),
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

			if err := service.DeleteMarker(ctx, worldID, args[0], true); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Deleted marker %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	return cmd
}
