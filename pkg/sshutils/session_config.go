package sshutils

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

const (
	DefaultHost = "167.99.90.75"
	DefaultPort = 22
)

// SessionConfig describes how Open reaches and authenticates to the host.
type SessionConfig struct {
	Host string
	Port int

	// Identities are tried in order; the first to authenticate is bound.
	Identities []models.Identity
	Password   string
	KeyPaths   []string
	UseAgent   bool

	KnownHostsPath string
	HostKeyPolicy  HostKeyPolicy
	// DialTimeout bounds the TCP connect. Zero means no timeout.
	DialTimeout time.Duration

	Dialer            SSHDialer
	SFTPClientCreator SFTPClientCreator
	Greeter           Greeter
	Logger            *logger.Logger
}

// NewSessionConfig returns a config for host with the default identities,
// key lookup, agent use and known_hosts handling.
func NewSessionConfig(host string, port int, password string) *SessionConfig {
	return &SessionConfig{
		Host:              host,
		Port:              port,
		Identities:        append([]models.Identity(nil), models.DefaultIdentities...),
		Password:          password,
		KeyPaths:          DefaultKeyPaths(),
		UseAgent:          true,
		KnownHostsPath:    DefaultKnownHostsPath(),
		HostKeyPolicy:     HostKeyAutoAdd,
		Dialer:            NewSSHDialer(),
		SFTPClientCreator: DefaultSFTPClientCreator,
		Logger:            logger.Get(),
	}
}

func (c *SessionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *SessionConfig) validate() error {
	if c == nil {
		return fmt.Errorf("session config cannot be nil")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Port)
	}
	return nil
}

func (c *SessionConfig) logger() *logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
