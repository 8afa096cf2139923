package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/launcher"
	"github.com/bnema/craftctl/internal/profile"
	"github.com/bnema/craftctl/internal/ui/progress"
)

var launchPlayer string

var launchCmd = &cobra.Command{
	Use:     "launch <profile.yaml>",
	Aliases: []string{"start", "run", "play"},
	Short:   "Install what a profile needs and start the game",
	Long: `Launches the game described by a profile file.

This will:
  1. Install the selected vanilla, forge or fabric version if missing
  2. Extract native libraries
  3. Setup environment (Wayland, GPU tweaks)
  4. Start java in the profile directory and forward its output to the log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		var id string
		err = a.track(ctx, "Preparing "+p.Name, func(ctx context.Context) error {
			var err error
			id, err = a.installer.InstallProfile(ctx, p)
			return err
		})
		if err != nil {
			reportError(err)
			return err
		}

		player := launchPlayer
		if player == "" {
			player = p.Player
		}

		progress.PrintSuccess("Starting " + id)
		if err := a.launcher.Launch(ctx, id, launcher.OptionsFor(p, player)); err != nil {
			progress.PrintError("Failed to launch: " + err.Error())
			return err
		}
		return nil
	},
}

func init() {
	launchCmd.Flags().StringVarP(&launchPlayer, "player", "p", "", "Offline player name, overrides the profile")
	rootCmd.AddCommand(launchCmd)
}
