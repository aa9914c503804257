package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "worldline",
		Short: "Event-sourced timeline engine for fictional worlds",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(markerCmd())
	root.AddCommand(opCmd())
	root.AddCommand(stateCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
