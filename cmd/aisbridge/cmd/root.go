package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
)

// version is overridden at link time with -ldflags "-X ...cmd.version=..."
var version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aisbridge",
	Short: "AIS telemetry websocket bridge",
	Long: `aisbridge connects to an AIS receiver's Socket.IO feed, keeps that
connection alive, and republishes vessel position events to any number of
local websocket subscribers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetDebug returns the debug flag value
func GetDebug() bool {
	return debug
}
