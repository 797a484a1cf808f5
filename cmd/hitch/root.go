package main

import (
	"fmt"
	"os"

	"github.com/aretw0/hitch/internal/cli"
	"github.com/aretw0/hitch/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hitch",
	Short: "Hitch runs durable workflows that pause for human input",
	Long: `Hitch checkpoints every step of a workflow so it can stop to ask a human,
survive a restart and pick up exactly where it left off.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the config file (YAML or JSON)")
	rootCmd.PersistentFlags().String("store", "", "Store driver: memory, file, sqlite or redis (overrides the config file)")
	rootCmd.PersistentFlags().String("dir", "", "Store location: directory for file, database path for sqlite")
	rootCmd.PersistentFlags().Bool("debug", false, "Log engine activity to stderr")
	rootCmd.PersistentFlags().Bool("json", false, "Use JSON Lines for input and output")
}

// options reads the persistent flags.
func options(cmd *cobra.Command) cli.Options {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	driver, _ := flags.GetString("store")
	dir, _ := flags.GetString("dir")
	debug, _ := flags.GetBool("debug")
	jsonMode, _ := flags.GetBool("json")
	return cli.Options{
		ConfigPath:  configPath,
		StoreDriver: driver,
		StorePath:   dir,
		Debug:       debug,
		JSON:        jsonMode,
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
	}
}
