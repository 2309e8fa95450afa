package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "minipm",
		Short: "Mini project manager with a dependency-aware task scheduler",
		Long: `minipm tracks projects and tasks for registered users and computes
a recommended execution order for tasks that depend on each other.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newScheduleCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the minipm version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "minipm %s\n", version)
		},
	}
}
