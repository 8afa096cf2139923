package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/installer"
	"github.com/bnema/craftctl/internal/profile"
	"github.com/bnema/craftctl/internal/ui/progress"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:     "install",
	Aliases: []string{"i"},
	Short:   "Install a version into the store",
	Long: `Installs a game version and everything it needs to launch.

Already installed versions are skipped unless --force is given. Concurrent
installs of the same version share one installation.`,
}

var installVanillaCmd = &cobra.Command{
	Use:   "vanilla <version>",
	Short: "Install a vanilla version, e.g. 1.16.5",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall("Installing "+args[0], func(ctx context.Context, a *app) (string, error) {
			return a.installer.InstallVanilla(ctx, args[0], installForce)
		})
	},
}

var installForgeCmd = &cobra.Command{
	Use:   "forge <loader>",
	Short: "Install a forge loader build and its game version, e.g. 36.1.0",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall("Installing forge "+args[0], func(ctx context.Context, a *app) (string, error) {
			return a.installer.InstallForge(ctx, args[0], installForce)
		})
	},
}

var installFabricCmd = &cobra.Command{
	Use:   "fabric <mappings> <loader>",
	Short: "Install fabric, e.g. 1.16.5+build.61 0.11.3",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall("Installing fabric "+args[1], func(ctx context.Context, a *app) (string, error) {
			return a.installer.InstallFabric(ctx, args[0], args[1], installForce)
		})
	},
}

var installModpackCmd = &cobra.Command{
	Use:   "modpack <name> <url>",
	Short: "Install a curse modpack archive into a fresh instance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall("Installing modpack "+args[0], func(ctx context.Context, a *app) (string, error) {
			pack, err := a.installer.InstallCurseModpack(ctx, args[0], args[1])
			if err != nil {
				return "", err
			}
			return pack.VersionID, nil
		})
	},
}

var installProfileCmd = &cobra.Command{
	Use:   "profile <profile.yaml>",
	Short: "Install whatever a profile file selects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}
		return runInstall("Installing "+p.Name, func(ctx context.Context, a *app) (string, error) {
			return a.installer.InstallProfile(ctx, p)
		})
	},
}

// runInstall wires the app, runs install under the progress view and reports
// the outcome
func runInstall(title string, install func(ctx context.Context, a *app) (string, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	var id string
	err = a.track(ctx, title, func(ctx context.Context) error {
		var err error
		id, err = install(ctx, a)
		return err
	})
	if err != nil {
		reportError(err)
		return err
	}

	progress.PrintSuccess("Installed " + id)
	return nil
}

func reportError(err error) {
	var failure *installer.Failure
	if errors.As(err, &failure) {
		progress.PrintError(failure.Message)
		return
	}
	getLogger().Error("Installation failed", "error", err)
	progress.PrintError(err.Error())
}

func init() {
	installCmd.PersistentFlags().BoolVarP(&installForce, "force", "f", false, "Reinstall even when already installed")
	installCmd.AddCommand(installVanillaCmd, installForgeCmd, installFabricCmd, installModpackCmd, installProfileCmd)
	rootCmd.AddCommand(installCmd)
}
