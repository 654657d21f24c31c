package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweeper",
		Short: "Time-based maintenance passes, run from cron or a scheduler",
	}
	cmd.AddCommand(newSwapsCmd())
	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
