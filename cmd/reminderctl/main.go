package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "reminderctl",
	Short: "Reminder scheduling engine",
	Long: `reminderctl runs the reminder engine as a service and offers offline
helpers to inspect what a preference document compiles to.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
