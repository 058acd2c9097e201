package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/piwakawaka/pkg/runner"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

func getWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show which identity authenticates and what the server calls it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(session *sshutils.Session) error {
				result, err := runner.New(session, a.console).Output(cmd.Context(), "whoami")
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Identity: %s\n", session.Identity)
				fmt.Fprintf(out, "Host:     %s:%d\n", session.Host, session.Port)
				fmt.Fprintf(out, "Remote:   %s\n", strings.TrimSpace(result.Stdout))
				return nil
			})
		},
	}
}
