package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"worldline/internal/config"
	"worldline/internal/mcp"
	"worldline/internal/metrics"
	"worldline/internal/timeline"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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

	var collector metrics.Collector
	if cfg.Metrics.Listen != "" {
		promCollector := metrics.NewCollector()
		collector = promCollector
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(promCollector.Registry(), promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics listener: %v\n", err)
			}
		}()
	}

	service := timeline.NewService(db, collector, cfg.Timeline.UseSnapshots)
	server := mcp.NewServer(service, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
