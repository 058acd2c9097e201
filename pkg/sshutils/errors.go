package sshutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

var (
	ErrAuthenticationExhausted = errors.New("no identity could be authenticated")
	ErrLocalFileMissing        = errors.New("local file does not exist")
	ErrRemoteWriteFailed       = errors.New("remote write failed")
	ErrSessionClosed           = errors.New("session is closed")
)

// AuthAttempt records why one candidate identity was refused.
type AuthAttempt struct {
	Identity models.Identity
	Err      error
}

// AuthExhaustedError is returned by Open when no candidate authenticated.
// It matches ErrAuthenticationExhausted.
type AuthExhaustedError struct {
	Host     string
	Attempts []AuthAttempt
}

func (e *AuthExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s on %s: no candidate identities", ErrAuthenticationExhausted, e.Host)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Identity.Username, a.Err))
	}
	return fmt.Sprintf("%s on %s (%s)", ErrAuthenticationExhausted, e.Host, strings.Join(parts, "; "))
}

func (e *AuthExhaustedError) Is(target error) bool {
	return target == ErrAuthenticationExhausted
}
