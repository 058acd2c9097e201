package sshutils

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

func TestAuthenticateReturnsFirstSuccess(t *testing.T) {
	logger.InitTest(t)
	client := &MockSSHClient{}

	var tried []string
	attempt := func(_ context.Context, identity models.Identity) (SSHClienter, error) {
		tried = append(tried, identity.Username)
		if identity.Username == "dsw" {
			return client, nil
		}
		return nil, errors.New("ssh: unable to authenticate")
	}

	identity, got, err := Authenticate(context.Background(), "example.com", models.DefaultIdentities, attempt)
	require.NoError(t, err)
	assert.Equal(t, "Dean", identity.DisplayName)
	assert.Same(t, client, got)
	assert.Equal(t, []string{"sar", "mja", "dsw"}, tried)
}

func TestAuthenticateExhausted(t *testing.T) {
	logger.InitTest(t)
	refused := errors.New("ssh: unable to authenticate")
	attempt := func(context.Context, models.Identity) (SSHClienter, error) {
		return nil, refused
	}

	_, client, err := Authenticate(context.Background(), "example.com", models.DefaultIdentities, attempt)
	assert.Nil(t, client)
	require.ErrorIs(t, err, ErrAuthenticationExhausted)

	var exhausted *AuthExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "example.com", exhausted.Host)
	require.Len(t, exhausted.Attempts, len(models.DefaultIdentities))
	for i, a := range exhausted.Attempts {
		assert.Equal(t, models.DefaultIdentities[i], a.Identity)
		assert.Equal(t, refused, a.Err)
	}
	assert.Contains(t, err.Error(), "sar: ssh: unable to authenticate")
	assert.Contains(t, err.Error(), "jst: ssh: unable to authenticate")
}

func TestAuthenticateNoCandidates(t *testing.T) {
	_, _, err := Authenticate(context.Background(), "example.com", nil,
		func(context.Context, models.Identity) (SSHClienter, error) {
			t.Fatal("attempt should not be called")
			return nil, nil
		})
	assert.ErrorIs(t, err, ErrAuthenticationExhausted)
	assert.Contains(t, err.Error(), "no candidate identities")
}

func TestAuthenticateStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Authenticate(ctx, "example.com", models.DefaultIdentities,
		func(context.Context, models.Identity) (SSHClienter, error) {
			t.Fatal("attempt should not be called")
			return nil, nil
		})
	assert.ErrorIs(t, err, context.Canceled)
}

func writeKey(t *testing.T, dir, name string, passphrase string) ssh.PublicKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), pem.EncodeToMemory(block), 0600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return sshPub
}

func TestLoadSigners(t *testing.T) {
	l := logger.InitTest(t)
	dir := t.TempDir()
	plain := writeKey(t, dir, "id_ed25519", "")
	encrypted := writeKey(t, dir, "id_encrypted", "hunter2")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage"), []byte("not a key"), 0600))

	paths := []string{
		filepath.Join(dir, "missing"),
		filepath.Join(dir, "id_ed25519"),
		filepath.Join(dir, "garbage"),
		filepath.Join(dir, "id_encrypted"),
	}

	t.Run("without password", func(t *testing.T) {
		signers := loadSigners(l, paths, "")
		require.Len(t, signers, 1)
		assert.Equal(t, plain.Marshal(), signers[0].PublicKey().Marshal())
	})

	t.Run("password unlocks encrypted keys", func(t *testing.T) {
		signers := loadSigners(l, paths, "hunter2")
		require.Len(t, signers, 2)
		assert.Equal(t, plain.Marshal(), signers[0].PublicKey().Marshal())
		assert.Equal(t, encrypted.Marshal(), signers[1].PublicKey().Marshal())
	})

	t.Run("wrong password skips encrypted keys", func(t *testing.T) {
		signers := loadSigners(l, paths, "wrong")
		assert.Len(t, signers, 1)
	})
}

func TestAuthMethods(t *testing.T) {
	assert.Empty(t, authMethods(nil, ""))
	assert.Len(t, authMethods(nil, "pw"), 1)

	l := logger.InitTest(t)
	dir := t.TempDir()
	writeKey(t, dir, "id_ed25519", "")
	signers := loadSigners(l, []string{filepath.Join(dir, "id_ed25519")}, "")
	assert.Len(t, authMethods(signers, ""), 1)
	assert.Len(t, authMethods(signers, "pw"), 2)
}

func TestAgentSignersWithoutSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", filepath.Join(t.TempDir(), "no.sock"))
	signers, closeAgent := agentSigners(logger.InitTest(t))
	defer closeAgent()
	assert.Empty(t, signers)
}

func TestDefaultKeyPaths(t *testing.T) {
	paths := DefaultKeyPaths()
	require.Len(t, paths, 4)
	assert.Equal(t, "id_rsa", filepath.Base(paths[0]))
	assert.Equal(t, "id_dsa", filepath.Base(paths[3]))
	assert.Equal(t, ".ssh", filepath.Base(filepath.Dir(paths[0])))
}
