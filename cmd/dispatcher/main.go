package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dispatcher",
		Short:         "Templated bulk email dispatch engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newWorkerCmd(&configPath),
		newProcessOnceCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}
