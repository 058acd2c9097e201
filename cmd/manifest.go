package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/piwakawaka/pkg/archive"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/table"
)

func getManifestCmd(a *app) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest <local-dir>",
		Short: "List the files ship would archive, without connecting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			localDir := args[0]
			m, err := archive.BuildManifest(localDir, a.cfg.Ship.MaxDepth)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", localDir, err)
			}
			if len(m) == 0 {
				a.console.Warn(models.NewEmptyManifestWarning(localDir, archive.EffectiveMaxDepth(a.cfg.Ship.MaxDepth)))
				return nil
			}

			mt := table.NewManifestTable(cmd.OutOrStdout())
			for _, entry := range m {
				mt.AddEntry(entry)
			}
			mt.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d files, %s\n", mt.Rows(), mt.TotalSize())
			return nil
		},
	}
	addArchiveFlags(manifestCmd)
	return manifestCmd
}
