package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/hitch/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <workflow> [input...]",
	Short: "Run a workflow on a thread",
	Long: `Runs one of the bundled workflows and converses with it until it completes.

Without --thread a new thread is started. With --thread an existing thread is
continued: a thread waiting for input is asked its question again, or answered
with the given input; a finished thread starts another run.`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: cli.WorkflowNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		verbose, _ := cmd.Flags().GetBool("verbose")
		return cli.Run(cmd.Context(), cli.RunOptions{
			Options:  options(cmd),
			Workflow: args[0],
			ThreadID: threadID,
			Input:    strings.Join(args[1:], " "),
			Verbose:  verbose,
		})
	},
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List the bundled workflows",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, w := range cli.Workflows() {
			fmt.Fprintf(out, "%-14s %s\n", w.Name, w.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workflowsCmd)

	runCmd.Flags().StringP("thread", "t", "", "Thread ID to start or continue")
	runCmd.Flags().BoolP("verbose", "v", false, "Print every committed step")
}
