package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/text"
	"github.com/spf13/cobra"

	"github.com/bnema/craftctl/internal/layout"
	"github.com/bnema/craftctl/internal/meta"
	"github.com/bnema/craftctl/internal/ui/styles"
)

var (
	versionsSnapshots bool
	versionsOld       bool
	versionsLimit     int
)

var versionsCmd = &cobra.Command{
	Use:     "versions",
	Aliases: []string{"ls"},
	Short:   "List installable versions with their forge and fabric builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		catalog, err := a.resolver.Catalog(ctx)
		if err != nil {
			return err
		}

		rows := versionRows(catalog, a.layout, versionsSnapshots, versionsOld)
		if versionsLimit > 0 && len(rows) > versionsLimit {
			rows = rows[:versionsLimit]
		}
		printVersionRows(rows)
		return nil
	},
}

type versionRow struct {
	ID        string
	Type      string
	Forge     string
	Fabric    string
	Installed bool
}

// versionRows flattens the catalog, newest release first, each followed by
// its snapshots when requested
func versionRows(c *meta.Catalog, l layout.Layout, snapshots, old bool) []versionRow {
	var rows []versionRow
	add := func(v *meta.GameVersion) {
		row := versionRow{ID: v.ID, Type: v.Type}
		if len(v.Forge) > 0 {
			row.Forge = fmt.Sprintf("%s (%d)", v.Forge[0].Name, len(v.Forge))
		}
		if len(v.Fabric) > 0 {
			row.Fabric = fmt.Sprintf("%d builds", len(v.Fabric))
		}
		if info, err := os.Stat(l.VersionJSON(v.ID)); err == nil && !info.IsDir() {
			row.Installed = true
		}
		rows = append(rows, row)
	}

	for _, release := range c.Releases {
		add(release)
		if snapshots {
			for _, s := range release.Snapshots {
				add(s)
			}
		}
	}
	if old {
		for _, v := range c.Old {
			add(v)
		}
	}
	return rows
}

func printVersionRows(rows []versionRow) {
	headers := []string{"VERSION:", "TYPE:", "FORGE:", "FABRIC:", ""}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, cell := range []string{r.ID, r.Type, r.Forge, r.Fabric} {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(text.AlignLeft.Apply(h, widths[i]+2))
	}
	fmt.Println(strings.TrimRight(b.String(), " "))

	for _, r := range rows {
		b.Reset()
		b.WriteString(text.Bold.Sprint(text.AlignLeft.Apply(r.ID, widths[0]+2)))
		b.WriteString(styles.VersionTypeStyle(r.Type).Render(text.AlignLeft.Apply(r.Type, widths[1]+2)))
		b.WriteString(text.AlignLeft.Apply(r.Forge, widths[2]+2))
		b.WriteString(text.AlignLeft.Apply(r.Fabric, widths[3]+2))
		b.WriteString(styles.FormatInstalled(r.Installed))
		fmt.Println(b.String())
	}
}

func init() {
	versionsCmd.Flags().BoolVarP(&versionsSnapshots, "snapshots", "s", false, "Include snapshots")
	versionsCmd.Flags().BoolVar(&versionsOld, "old", false, "Include alpha and beta versions")
	versionsCmd.Flags().IntVarP(&versionsLimit, "limit", "n", 20, "Maximum number of rows, 0 for all")
	rootCmd.AddCommand(versionsCmd)
}
