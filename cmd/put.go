package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bacalhau-project/piwakawaka/pkg/progress"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

func getPutCmd(a *app) *cobra.Command {
	putCmd := &cobra.Command{
		Use:   "put <local-file> <remote-path>",
		Short: "Upload a single file over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			localPath, remotePath := args[0], args[1]
			return a.withSession(cmd.Context(), func(session *sshutils.Session) error {
				var report progress.Func
				if a.cfg.Progress.Enabled {
					report = a.console.NewProgress()
				}
				return session.PutFile(cmd.Context(), localPath, remotePath, report)
			})
		},
	}
	addProgressFlags(putCmd)
	return putCmd
}

func addProgressFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("progress", true, "show transfer progress")
	cmd.Flags().Bool("bar", false, "draw a progress bar")
}
