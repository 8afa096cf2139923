package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/logger"
)

// jobCmd is the entry point of job worker processes. It reads one envelope
// on stdin and writes JSON line messages on stdout.
var jobCmd = &cobra.Command{
	Use:    "job",
	Short:  "Run one installation job (internal)",
	Hidden: true,
	Args:   cobra.NoArgs,
	// Workers log to stderr only, the parent forwards it
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		code := jobs.Serve(ctx, os.Stdin, os.Stdout, logger.NewWorker(verbose))
		stop()
		os.Exit(code)
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)
}
