package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/logger"
)

// Version info set via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose bool
	plain   bool
)

var rootCmd = &cobra.Command{
	Use:     "craftctl",
	Short:   "Minecraft launcher core for the command line",
	Version: version + " (" + commit + ")",
	Long: `Installs vanilla, forge, fabric and modpack versions into a local
artifact store and launches them.

Quick start:
  craftctl install vanilla 1.16.5    Install a game version
  craftctl launch profile.yaml       Install what a profile needs and start it`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logger.Init(verbose)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		logger.Close()
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Print progress as plain lines instead of the interactive view")
}

// getLogger returns the process logger, falling back to stderr before Init
func getLogger() *log.Logger {
	if logger.Log == nil {
		return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	return logger.Log
}
