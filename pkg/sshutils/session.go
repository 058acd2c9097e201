package sshutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/progress"
)

const transferChunkSize = 32 * 1024

// Session is one authenticated SSH connection and the SFTP channel opened on
// it. It is not safe for concurrent use.
type Session struct {
	Host     string
	Port     int
	Identity models.Identity

	client SSHClienter
	sftp   SFTPClienter
	logger *logger.Logger
	closed bool
}

// Open authenticates to the configured host as the first identity that the
// server accepts and opens the SFTP channel.
func Open(ctx context.Context, config *SessionConfig) (*Session, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	l := config.logger().With(logger.String("host", config.Address()))
	ctx = logger.IntoContext(ctx, l)

	dialer := config.Dialer
	if dialer == nil {
		dialer = NewSSHDialer()
	}
	openSFTP := config.SFTPClientCreator
	if openSFTP == nil {
		openSFTP = DefaultSFTPClientCreator
	}

	addr := config.Address()
	verifyHostKey, err := hostKeyCallback(config.HostKeyPolicy, config.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	hostKeyAlgorithms, err := knownHostKeyAlgorithms(config.HostKeyPolicy, config.KnownHostsPath, addr)
	if err != nil {
		return nil, err
	}

	signers := loadSigners(l, config.KeyPaths, config.Password)
	if config.UseAgent {
		fromAgent, closeAgent := agentSigners(l)
		defer closeAgent()
		signers = append(signers, fromAgent...)
	}

	attempt := func(ctx context.Context, identity models.Identity) (SSHClienter, error) {
		clientConfig := &ssh.ClientConfig{
			User:              identity.Username,
			Auth:              authMethods(signers, config.Password),
			HostKeyCallback:   verifyHostKey,
			HostKeyAlgorithms: hostKeyAlgorithms,
			Timeout:           config.DialTimeout,
		}
		return dialer.Dial(ctx, "tcp", addr, clientConfig)
	}

	l.Infof("Connecting to %s", addr)
	identity, client, err := Authenticate(ctx, config.Host, config.Identities, attempt)
	if err != nil {
		return nil, err
	}

	sftpClient, err := openSFTP(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open sftp channel: %w", err)
	}

	l.Infof("Authenticated as %s", identity.Username)
	if config.Greeter != nil {
		config.Greeter.Greet(identity)
	}

	return &Session{
		Host:     config.Host,
		Port:     config.Port,
		Identity: identity,
		client:   client,
		sftp:     sftpClient,
		logger:   l,
	}, nil
}

// Close releases the SFTP channel and then the SSH connection. Closing a nil
// or already closed session returns ErrSessionClosed.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	var errs []error
	if s.sftp != nil {
		if err := s.sftp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sftp client: %w", err))
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close ssh client: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) checkOpen() error {
	if s == nil || s.closed {
		return ErrSessionClosed
	}
	return nil
}

// RunCommand executes command on a fresh exec channel and captures both
// output streams. A non-zero exit status is reported in the result, not as an
// error.
func (s *Session) RunCommand(ctx context.Context, command string) (*models.CommandResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.logger.Debugf("Running remote command: %s", command)

	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	drainErr := g.Wait()
	waitErr := session.Wait()

	result := &models.CommandResult{
		Command: command,
		Stdout:  outBuf.String(),
		Stderr:  errBuf.String(),
	}
	if waitErr != nil {
		var exitErr *ssh.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("failed to run command: %w", waitErr)
		}
		result.ExitCode = exitErr.ExitStatus()
	}
	if drainErr != nil {
		return nil, fmt.Errorf("failed to read command output: %w", drainErr)
	}

	s.logger.Debugf("Remote command exited with %d (%d bytes stdout, %d bytes stderr)",
		result.ExitCode, len(result.Stdout), len(result.Stderr))
	return result, nil
}

// PutFile uploads localPath to remotePath over SFTP. When report is non-nil
// it is called after every chunk; the last call always has transferred equal
// to total. The remote size is checked against the local size afterwards.
func (s *Session) PutFile(
	ctx context.Context,
	localPath, remotePath string,
	report progress.Func,
) error {
	info, err := os.Stat(localPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrLocalFileMissing, localPath)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot upload %s: is a directory", localPath)
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer local.Close()

	task := &models.TransferTask{
		LocalPath:  localPath,
		RemotePath: remotePath,
		Total:      info.Size(),
	}
	s.logger.Infof("Uploading %s to %s (%d bytes)", localPath, remotePath, task.Total)

	remote, err := s.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrRemoteWriteFailed, remotePath, err)
	}

	if err := copyChunks(remote, local, task, report); err != nil {
		remote.Close()
		return err
	}
	if err := remote.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %w", ErrRemoteWriteFailed, remotePath, err)
	}
	if task.Total == 0 && report != nil {
		report(task.Transferred, task.Total)
	}

	remoteInfo, err := s.sftp.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("%w: failed to stat %s: %w", ErrRemoteWriteFailed, remotePath, err)
	}
	if remoteInfo.Size() != task.Total {
		return fmt.Errorf("%w: size mismatch on %s: local %d bytes, remote %d bytes",
			ErrRemoteWriteFailed, remotePath, task.Total, remoteInfo.Size())
	}

	s.logger.Debugf("Upload of %s complete", remotePath)
	return nil
}

func copyChunks(dst io.Writer, src io.Reader, task *models.TransferTask, report progress.Func) error {
	buf := make([]byte, transferChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: failed to write %s: %w", ErrRemoteWriteFailed, task.RemotePath, err)
			}
			task.Transferred += int64(n)
			if report != nil {
				report(task.Transferred, task.Total)
			}
		}
		if readErr == io.EOF {
			if !task.Done() {
				return fmt.Errorf("failed to read %s: got %d of %d bytes", task.LocalPath, task.Transferred, task.Total)
			}
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", task.LocalPath, readErr)
		}
	}
}

// EnsureRemoteDir creates dir and any missing parents on the remote host.
func (s *Session) EnsureRemoteDir(ctx context.Context, dir string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.sftp.MkdirAll(dir); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
	}
	return nil
}
