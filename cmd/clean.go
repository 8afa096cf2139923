package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/launcher"
	"github.com/bnema/craftctl/internal/ui/progress"
)

var cleanCmd = &cobra.Command{
	Use:     "clean",
	Aliases: []string{"c"},
	Short:   "Remove temporary downloads and extracted natives",
	Long: `Removes the store's temp directory and every versions/<id>/natives
directory. Installed versions, libraries, assets and instances are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background())
		if err != nil {
			return err
		}

		progress.PrintTitle("Cleaning " + a.layout.Root)

		freed, err := a.launcher.Clean()
		if err != nil {
			progress.PrintError("Failed to clean: " + err.Error())
			return err
		}

		progress.PrintSuccess("Freed " + launcher.FormatBytes(freed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
