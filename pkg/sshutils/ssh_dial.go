package sshutils

import (
	"context"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

type defaultSSHDialer struct{}

// NewSSHDialer returns the dialer used by Open unless one is injected.
func NewSSHDialer() SSHDialer {
	return &defaultSSHDialer{}
}

func (d *defaultSSHDialer) Dial(
	ctx context.Context,
	network, addr string,
	config *ssh.ClientConfig,
) (SSHClienter, error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &SSHClientWrapper{Client: ssh.NewClient(c, chans, reqs)}, nil
}
