package main

import (
	"github.com/aretw0/hitch/internal/cli"
	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:     "threads",
	Aliases: []string{"thread"},
	Short:   "Manage persistent threads",
	Long:    `List, inspect, and remove the threads kept in the configured store.`,
}

var threadsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListThreads(cmd.Context(), options(cmd))
	},
}

var threadsInspectCmd = &cobra.Command{
	Use:   "inspect <thread-id>",
	Short: "Print a thread and its checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.InspectThread(cmd.Context(), options(cmd), args[0])
	},
}

var threadsRmCmd = &cobra.Command{
	Use:   "rm <thread-id>...",
	Short: "Remove one or more threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RemoveThreads(cmd.Context(), options(cmd), args...)
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
	threadsCmd.AddCommand(threadsLsCmd)
	threadsCmd.AddCommand(threadsInspectCmd)
	threadsCmd.AddCommand(threadsRmCmd)
}
