package sshutils

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

// AttemptFunc tries to authenticate as one identity. On failure it must not
// leave a connection open.
type AttemptFunc func(ctx context.Context, identity models.Identity) (SSHClienter, error)

// Authenticate tries candidates in order and returns the first identity that
// attempt accepts along with its client. When every candidate fails the error
// is an *AuthExhaustedError listing each refusal.
func Authenticate(
	ctx context.Context,
	host string,
	candidates []models.Identity,
	attempt AttemptFunc,
) (models.Identity, SSHClienter, error) {
	l := logger.FromContext(ctx)
	exhausted := &AuthExhaustedError{Host: host}

	for _, identity := range candidates {
		if err := ctx.Err(); err != nil {
			return models.Identity{}, nil, err
		}
		client, err := attempt(ctx, identity)
		if err == nil {
			return identity, client, nil
		}
		l.Debugf("Authentication as %s@%s failed: %v", identity.Username, host, err)
		exhausted.Attempts = append(exhausted.Attempts, AuthAttempt{Identity: identity, Err: err})
	}

	return models.Identity{}, nil, exhausted
}

// DefaultKeyPaths lists the private keys looked for when none are configured.
func DefaultKeyPaths() []string {
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	names := []string{"id_rsa", "id_ecdsa", "id_ed25519", "id_dsa"}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(home, ".ssh", name))
	}
	return paths
}

// loadSigners parses every readable key in paths. Keys that need a passphrase
// are unlocked with password, or skipped when there is none.
func loadSigners(l *logger.Logger, paths []string, password string) []ssh.Signer {
	var signers []ssh.Signer
	for _, path := range paths {
		expanded, err := homedir.Expand(path)
		if err != nil {
			l.Debugf("Skipping key %s: %v", path, err)
			continue
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				l.Debugf("Skipping key %s: %v", expanded, err)
			}
			continue
		}

		signer, err := ssh.ParsePrivateKey(data)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			if password == "" {
				l.Debugf("Skipping encrypted key %s: no password supplied", expanded)
				continue
			}
			signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(password))
		}
		if err != nil {
			l.Debugf("Skipping key %s: %v", expanded, err)
			continue
		}
		l.Debugf("Loaded %s key from %s", signer.PublicKey().Type(), expanded)
		signers = append(signers, signer)
	}
	return signers
}

// agentSigners returns the signers held by the agent at SSH_AUTH_SOCK. The
// returned close function must be called once authentication is over.
func agentSigners(l *logger.Logger) ([]ssh.Signer, func()) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, func() {}
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		l.Debugf("SSH agent unavailable: %v", err)
		return nil, func() {}
	}
	signers, err := agent.NewClient(conn).Signers()
	if err != nil {
		l.Debugf("Failed to list SSH agent keys: %v", err)
		conn.Close()
		return nil, func() {}
	}
	return signers, func() { conn.Close() }
}

// authMethods builds the per-candidate method list. All signers share one
// publickey method because the client only tries each method name once.
func authMethods(signers []ssh.Signer, password string) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if password != "" {
		methods = append(methods, ssh.Password(password))
	}
	return methods
}
