package sshutils_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/bacalhau-project/piwakawaka/internal/testutil"
	"github.com/bacalhau-project/piwakawaka/pkg/console"
	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/progress"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

func echoExec(command string, stdout, stderr io.Writer) int {
	switch {
	case strings.HasPrefix(command, "echo "):
		fmt.Fprintln(stdout, strings.TrimPrefix(command, "echo "))
		return 0
	case command == "fail":
		fmt.Fprint(stderr, "boom\n")
		return 2
	default:
		fmt.Fprintf(stderr, "sh: %s: not found\n", command)
		return 127
	}
}

func newConfig(t *testing.T, srv *testutil.SSHServer, password string) (*sshutils.SessionConfig, *bytes.Buffer) {
	var out bytes.Buffer
	config := sshutils.NewSessionConfig(srv.Host, srv.Port, password)
	config.KeyPaths = nil
	config.UseAgent = false
	config.KnownHostsPath = filepath.Join(t.TempDir(), "known_hosts")
	config.Greeter = console.New(&out, io.Discard)
	config.Logger = logger.InitTest(t)
	return config, &out
}

func TestSessionOverPassword(t *testing.T) {
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		Passwords: map[string]string{"mja": "pw"},
		Exec:      echoExec,
	})
	config, out := newConfig(t, srv, "pw")
	ctx := context.Background()

	session, err := sshutils.Open(ctx, config)
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "mja", session.Identity.Username)
	assert.Contains(t, out.String(), "Welcome Mitch!")
	assert.Equal(t, []string{"mja"}, srv.SucceededUsers())
	events := srv.AuthEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, "sar", events[0].User)
	assert.False(t, events[0].Success)

	knownHosts, err := os.ReadFile(config.KnownHostsPath)
	require.NoError(t, err)
	assert.Contains(t, string(knownHosts), fmt.Sprintf("[%s]:%d ssh-ed25519", srv.Host, srv.Port))

	result, err := session.RunCommand(ctx, "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, result.ExitCode)

	result, err = session.RunCommand(ctx, "fail")
	require.NoError(t, err)
	assert.Empty(t, result.Stdout)
	assert.Equal(t, "boom\n", result.Stderr)
	assert.Equal(t, 2, result.ExitCode)
}

func TestSessionNegotiatesRecordedHostKeyType(t *testing.T) {
	edSigner := testutil.NewHostSigner(t)
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		Passwords:   map[string]string{"sar": "pw"},
		HostSigners: []ssh.Signer{testutil.NewRSAHostSigner(t), edSigner},
	})
	config, _ := newConfig(t, srv, "pw")
	line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr())}, edSigner.PublicKey())
	require.NoError(t, os.WriteFile(config.KnownHostsPath, []byte(line+"\n"), 0600))

	for _, policy := range []sshutils.HostKeyPolicy{sshutils.HostKeyAutoAdd, sshutils.HostKeyStrict} {
		t.Run(string(policy), func(t *testing.T) {
			config.HostKeyPolicy = policy
			session, err := sshutils.Open(context.Background(), config)
			require.NoError(t, err)
			session.Close()

			data, err := os.ReadFile(config.KnownHostsPath)
			require.NoError(t, err)
			assert.Equal(t, line+"\n", string(data))
		})
	}
}

func TestSessionPutFile(t *testing.T) {
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		Passwords: map[string]string{"sar": "pw"},
	})
	config, _ := newConfig(t, srv, "pw")

	session, err := sshutils.Open(context.Background(), config)
	require.NoError(t, err)
	defer session.Close()

	payload := bytes.Repeat([]byte("piwakawaka "), 10_000)
	localPath := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(localPath, payload, 0644))
	remotePath := filepath.Join(t.TempDir(), "uploaded.txt")

	var rec progress.Recorder
	require.NoError(t, session.PutFile(context.Background(), localPath, remotePath, rec.Func()))

	got, err := os.ReadFile(remotePath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	transferred, total := rec.Last()
	assert.Equal(t, int64(len(payload)), transferred)
	assert.Equal(t, int64(len(payload)), total)
	assert.Greater(t, len(rec.Updates), 1)
}

func TestSessionOverPublicKey(t *testing.T) {
	keyPath, pub := testutil.CreateSSHKeyPairOnDisk(t, t.TempDir(), "id_ed25519", "")
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		AuthorizedKeys: map[string][]ssh.PublicKey{"dsw": {pub}},
	})
	config, out := newConfig(t, srv, "")
	config.KeyPaths = []string{keyPath}

	session, err := sshutils.Open(context.Background(), config)
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "dsw", session.Identity.Username)
	assert.Contains(t, out.String(), "Welcome Dean!")
	for _, e := range srv.AuthEvents() {
		assert.Equal(t, "publickey", e.Method)
	}
}

func TestSessionEncryptedKeyUnlockedByPassword(t *testing.T) {
	keyPath, pub := testutil.CreateSSHKeyPairOnDisk(t, t.TempDir(), "id_ed25519", "secret")
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		AuthorizedKeys: map[string][]ssh.PublicKey{"tml": {pub}},
	})
	config, _ := newConfig(t, srv, "secret")
	config.KeyPaths = []string{keyPath}

	session, err := sshutils.Open(context.Background(), config)
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, "tml", session.Identity.Username)
}

func TestSessionAuthenticationExhausted(t *testing.T) {
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		Passwords: map[string]string{"root": "pw"},
	})
	config, out := newConfig(t, srv, "pw")

	session, err := sshutils.Open(context.Background(), config)
	assert.Nil(t, session)
	require.ErrorIs(t, err, sshutils.ErrAuthenticationExhausted)

	var exhausted *sshutils.AuthExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Attempts, 5)
	assert.Empty(t, srv.SucceededUsers())
	assert.Empty(t, out.String())
}

func TestSessionStrictPolicyRejectsUnknownHost(t *testing.T) {
	srv := testutil.NewSSHServer(t, testutil.ServerOptions{
		Passwords: map[string]string{"sar": "pw"},
	})
	config, _ := newConfig(t, srv, "pw")
	config.HostKeyPolicy = sshutils.HostKeyStrict
	require.NoError(t, os.WriteFile(config.KnownHostsPath, nil, 0600))

	_, err := sshutils.Open(context.Background(), config)
	require.ErrorIs(t, err, sshutils.ErrAuthenticationExhausted)
	assert.Contains(t, err.Error(), "knownhosts")
	assert.Empty(t, srv.SucceededUsers())
}
