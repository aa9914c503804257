package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"worldline/internal/timeline"
)

func opCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "op",
		Short: "Manage a marker's operations",
	}
	cmd.AddCommand(opListCmd())
	cmd.AddCommand(opAddCmd())
	cmd.AddCommand(opRmCmd())
	return cmd
}

func opListCmd() *cobra.Command {
	var worldID string
	var markerID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a marker's operations in replay order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" || strings.TrimSpace(markerID) == "" {
				return fmt.Errorf("--world and --marker are required")
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			operations, err := service.ListOperations(ctx, worldID, markerID)
			if err != nil {
				return err
			}
			if len(operations) == 0 {
				fmt.Fprintln(os.Stdout, "No operations found.")
				return nil
			}
			for _, op := range operations {
				payload, err := json.Marshal(op.Payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "[%d] %s  %s %s %s %s\n", op.OrderIndex, op.ID, op.OpType, op.TargetKind, op.TargetID, payload)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().StringVar(&markerID, "marker", "", "Marker identifier")
	return cmd
}

func opAddCmd() *cobra.Command {
	var worldID string
	var markerID string
	var opType string
	var targetKind string
	var targetID string
	var payloadJSON string
	var orderIndex int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Attach an operation to a marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" || strings.TrimSpace(markerID) == "" {
				return fmt.Errorf("--world and --marker are required")
			}
			if strings.TrimSpace(opType) == "" || strings.TrimSpace(targetKind) == "" {
				return fmt.Errorf("--type and --target-kind are required")
			}

			var payload map[string]any
			if payloadJSON != "" {
				if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
					return fmt.Errorf("parsing --payload: %w", err)
				}
			}

			in := timeline.OperationCreate{
				OpType:     opType,
				TargetKind: targetKind,
				TargetID:   targetID,
				Payload:    payload,
			}
			if cmd.Flags().Changed("order-index") {
				in.OrderIndex = &orderIndex
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			op, err := service.CreateOperation(ctx, worldID, markerID, in, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Created operation %s (%s).\n", op.ID, op.OpType)
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().StringVar(&markerID, "marker", "", "Marker identifier")
	cmd.Flags().StringVar(&opType, "type", "", "Operation verb, e.g. entity_create")
	cmd.Flags().StringVar(&targetKind, "target-kind", "", "entity, relation, or world")
	cmd.Flags().StringVar(&targetID, "target-id", "", "Id of the affected record")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "Operation payload as JSON")
	cmd.Flags().IntVar(&orderIndex, "order-index", 0, "Replay position within the marker")
	return cmd
}

func opRmCmd() *cobra.Command {
	var worldID string
	var markerID string
	cmd := &cobra.Command{
		Use:   "rm <operation-id>",
		Short: "Delete an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" || strings.TrimSpace(markerID) == "" {
				return fmt.Errorf("--world and --marker are required")
			}

			ctx := context.Background()
			service, db, err := openService(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			if err := service.DeleteOperation(ctx, worldID, markerID, args[0], true); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Deleted operation %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World identifier")
	cmd.Flags().StringVar(&markerID, "marker", "", "Marker identifier")
	return cmd
}
