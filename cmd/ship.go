package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/piwakawaka/pkg/archive"
	"github.com/bacalhau-project/piwakawaka/pkg/runner"
	"github.com/bacalhau-project/piwakawaka/pkg/shipper"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

func getShipCmd(a *app) *cobra.Command {
	shipCmd := &cobra.Command{
		Use:   "ship <local-dir> <remote-dir>",
		Short: "Zip a directory, upload it and unpack it remotely",
		Long: `Zip the top levels of a local directory, upload the archive into the remote
directory and unzip it next to it, so that ./proj shipped to /srv/proj/ ends
up in /srv/proj. The uploaded archive is removed afterwards.`,
		Example: "  piwakawaka ship ./results /home/sar/results/",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			localDir, remoteDir := args[0], args[1]
			if remoteDir == "" {
				return shipper.ErrEmptyRemoteDir
			}
			return a.withSession(cmd.Context(), func(session *sshutils.Session) error {
				s := shipper.New(session, runner.New(session, a.console), a.console)
				s.ArchiveName = a.cfg.Ship.ArchiveName
				return s.Ship(cmd.Context(), localDir, remoteDir, a.cfg.ShipOptions())
			})
		},
	}

	addArchiveFlags(shipCmd)
	addProgressFlags(shipCmd)
	shipCmd.Flags().String("archive-name", shipper.DefaultArchiveName, "name of the uploaded archive")
	shipCmd.Flags().Bool("create-remote-dir", false, "create the remote directory first")
	shipCmd.Flags().Bool("echo", false, "print the output of the remote unzip and rm")
	return shipCmd
}

func addArchiveFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-depth", archive.DefaultMaxDepth, "directory levels to include, -1 for all")
	cmd.Flags().String("compression", archive.Deflate.String(), "store, deflate, deflate-fast or deflate-best")
}
