package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/ui/progress"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <version>",
	Short: "Remove an installed version (keeps shared libraries and assets)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background())
		if err != nil {
			return err
		}

		progress.PrintTitle("Uninstalling " + args[0])

		if err := a.installer.Uninstall(args[0]); err != nil {
			progress.PrintError("Failed to uninstall: " + err.Error())
			return err
		}

		progress.PrintSuccess("Version removed")
		progress.PrintDetail("Libraries and assets kept in " + a.layout.Root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
