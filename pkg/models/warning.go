package models

import "fmt"

type WarningKind string

const (
	RemoteCommandWarning WarningKind = "remote-command"
	EmptyManifestWarning WarningKind = "empty-manifest"
)

// Warning is a non-fatal condition surfaced to the user.
type Warning struct {
	Kind    WarningKind
	Message string
}

func NewRemoteCommandWarning(command, stderr string) Warning {
	return Warning{
		Kind:    RemoteCommandWarning,
		Message: fmt.Sprintf("the command %q wrote to stderr:\n%s", command, stderr),
	}
}

// NewEmptyManifestWarning reports a directory with nothing to archive.
// maxDepth is the resolved bound; below 1 means the whole tree was searched.
func NewEmptyManifestWarning(dir string, maxDepth int) Warning {
	if maxDepth < 1 {
		return Warning{
			Kind:    EmptyManifestWarning,
			Message: fmt.Sprintf("no files were found in %s; the archive has been skipped", dir),
		}
	}
	return Warning{
		Kind: EmptyManifestWarning,
		Message: fmt.Sprintf(
			"no files were found in the top %d levels of %s; the archive has been skipped",
			maxDepth,
			dir,
		),
	}
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
