package sshutils

import (
	"context"
	"io"
	"os"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/ssh"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

// MockSSHDialer is a mock implementation of SSHDialer
type MockSSHDialer struct {
	mock.Mock
}

func (m *MockSSHDialer) Dial(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	args := m.Called(ctx, network, addr, config)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SSHClienter), nil
}

type MockSSHClient struct {
	mock.Mock
}

func (m *MockSSHClient) NewSession() (SSHSessioner, error) {
	args := m.Called()
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SSHSessioner), nil
}

func (m *MockSSHClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSSHSession struct {
	mock.Mock
}

func (m *MockSSHSession) StdoutPipe() (io.Reader, error) {
	args := m.Called()
	return args.Get(0).(io.Reader), args.Error(1)
}

func (m *MockSSHSession) StderrPipe() (io.Reader, error) {
	args := m.Called()
	return args.Get(0).(io.Reader), args.Error(1)
}

func (m *MockSSHSession) Start(cmd string) error {
	args := m.Called(cmd)
	return args.Error(0)
}

func (m *MockSSHSession) Wait() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSSHSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockSFTPClient struct {
	mock.Mock
}

func (m *MockSFTPClient) Create(path string) (io.WriteCloser, error) {
	args := m.Called(path)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), nil
}

func (m *MockSFTPClient) Stat(path string) (os.FileInfo, error) {
	args := m.Called(path)
	if args.Get(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(os.FileInfo), nil
}

func (m *MockSFTPClient) MkdirAll(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockSFTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockWriteCloser struct {
	mock.Mock
}

func (m *MockWriteCloser) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockWriteCloser) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockGreeter struct {
	mock.Mock
}

func (m *MockGreeter) Greet(identity models.Identity) {
	m.Called(identity)
}

var (
	_ SSHDialer    = &MockSSHDialer{}
	_ SSHClienter  = &MockSSHClient{}
	_ SSHSessioner = &MockSSHSession{}
	_ SFTPClienter = &MockSFTPClient{}
	_ Greeter      = &MockGreeter{}
)
