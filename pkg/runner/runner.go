// Package runner executes remote commands on a session and turns their
// output into console output and warnings.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

// CommandSession is the part of *sshutils.Session the runner needs.
type CommandSession interface {
	RunCommand(ctx context.Context, command string) (*models.CommandResult, error)
}

// Output is where echoed stdout and warnings end up.
type Output interface {
	Println(text string)
	Warn(w models.Warning)
}

type Runner struct {
	Session CommandSession
	Out     Output
	Logger  *logger.Logger
}

func New(session CommandSession, out Output) *Runner {
	return &Runner{Session: session, Out: out, Logger: logger.Get()}
}

// Execute runs command and prints its stdout when echo is set. Anything on
// stderr is reported as a warning; only transport failures are returned.
func (r *Runner) Execute(ctx context.Context, command string, echo bool) error {
	result, err := r.Output(ctx, command)
	if err != nil {
		return err
	}

	if echo && result.Stdout != "" {
		r.Out.Println(strings.TrimRight(result.Stdout, "\n"))
	}
	if result.HasStderr() {
		w := models.NewRemoteCommandWarning(command, result.Stderr)
		r.log().Warnf("%s", w.Message)
		r.Out.Warn(w)
	}
	return nil
}

// Output runs command and returns what it produced without printing.
func (r *Runner) Output(ctx context.Context, command string) (*models.CommandResult, error) {
	result, err := r.Session.RunCommand(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("failed to run %q: %w", command, err)
	}
	if result.ExitCode != 0 {
		r.log().Debugf("Command %q exited with status %d", command, result.ExitCode)
	}
	return result, nil
}

func (r *Runner) log() *logger.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.Get()
}
