package sshutils

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type SSHClientWrapper struct {
	Client *ssh.Client
}

func (c *SSHClientWrapper) NewSession() (SSHSessioner, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, err
	}
	return &SSHSessionWrapper{Session: session}, nil
}

func (c *SSHClientWrapper) Close() error {
	return c.Client.Close()
}

// SFTPClientWrapper adapts *sftp.Client to SFTPClienter.
type SFTPClientWrapper struct {
	Client *sftp.Client
}

func (s *SFTPClientWrapper) Create(path string) (io.WriteCloser, error) {
	return s.Client.Create(path)
}

func (s *SFTPClientWrapper) Stat(path string) (os.FileInfo, error) {
	return s.Client.Stat(path)
}

func (s *SFTPClientWrapper) MkdirAll(path string) error {
	return s.Client.MkdirAll(path)
}

func (s *SFTPClientWrapper) Close() error {
	return s.Client.Close()
}

// DefaultSFTPClientCreator opens an SFTP subsystem on a client created by the
// default dialer.
func DefaultSFTPClientCreator(client SSHClienter) (SFTPClienter, error) {
	wrapper, ok := client.(*SSHClientWrapper)
	if !ok {
		return nil, fmt.Errorf("cannot open sftp on %T", client)
	}
	c, err := sftp.NewClient(wrapper.Client)
	if err != nil {
		return nil, err
	}
	return &SFTPClientWrapper{Client: c}, nil
}
