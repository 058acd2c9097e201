package sshutils

import (
	"context"
	"io"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

// SSHClienter is an authenticated SSH connection.
type SSHClienter interface {
	NewSession() (SSHSessioner, error)
	Close() error
}

// SSHSessioner is a single exec channel on an SSHClienter.
type SSHSessioner interface {
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Start(cmd string) error
	Wait() error
	Close() error
}

// SFTPClienter interface defines the methods we need for SFTP operations
type SFTPClienter interface {
	Create(path string) (io.WriteCloser, error)
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string) error
	Close() error
}

type SSHDialer interface {
	Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig) (SSHClienter, error)
}

// SFTPClientCreator opens the SFTP sub-channel on an authenticated client.
type SFTPClientCreator func(client SSHClienter) (SFTPClienter, error)

// Greeter is told which identity a session was bound to.
type Greeter interface {
	Greet(identity models.Identity)
}

var (
	_ SSHClienter  = &SSHClientWrapper{}
	_ SSHSessioner = &SSHSessionWrapper{}
	_ SFTPClienter = &SFTPClientWrapper{}
	_ SSHDialer    = &defaultSSHDialer{}
)
