package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/hitch"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hitch",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hitch version %s\n", strings.TrimSpace(hitch.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
