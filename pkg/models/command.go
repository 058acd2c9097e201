package models

// CommandResult is the captured output of one remote command.
type CommandResult struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
}

// HasStderr reports whether the command wrote anything to standard error.
func (r *CommandResult) HasStderr() bool {
	return r != nil && r.Stderr != ""
}
