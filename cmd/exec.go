package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/piwakawaka/pkg/runner"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

func getExecCmd(a *app) *cobra.Command {
	var quiet bool
	execCmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run a command on the remote host",
		Long: `Run a shell command on the remote host and print what it writes to stdout.
Anything written to stderr is shown as a warning.`,
		Example: "  piwakawaka exec -- ls -la /srv",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			return a.withSession(cmd.Context(), func(session *sshutils.Session) error {
				r := runner.New(session, a.console)
				return r.Execute(cmd.Context(), command, !quiet)
			})
		},
	}
	execCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the command's stdout")
	return execCmd
}
