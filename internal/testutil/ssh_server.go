package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// ExecHandler runs one exec request and returns its exit status.
type ExecHandler func(command string, stdout, stderr io.Writer) int

type ServerOptions struct {
	// Passwords maps usernames to the password they accept.
	Passwords map[string]string
	// AuthorizedKeys maps usernames to the public keys they accept.
	AuthorizedKeys map[string][]ssh.PublicKey
	Exec           ExecHandler
	// HostSigners are the host keys offered to clients. Defaults to one
	// ed25519 key.
	HostSigners []ssh.Signer
}

// AuthEvent is one authentication attempt seen by the server.
type AuthEvent struct {
	User    string
	Method  string
	Success bool
}

// SSHServer is an in-process SSH server with exec and sftp support, bound to
// a random loopback port for the lifetime of a test.
type SSHServer struct {
	Host    string
	Port    int
	HostKey ssh.PublicKey

	opts     ServerOptions
	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	events   []AuthEvent
	commands []string
}

func NewSSHServer(t testing.TB, opts ServerOptions) *SSHServer {
	t.Helper()
	if len(opts.HostSigners) == 0 {
		opts.HostSigners = []ssh.Signer{NewHostSigner(t)}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)

	s := &SSHServer{
		Host:     addr.IP.String(),
		Port:     addr.Port,
		HostKey:  opts.HostSigners[0].PublicKey(),
		opts:     opts,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback:  s.checkPassword,
		PublicKeyCallback: s.checkPublicKey,
		AuthLogCallback:   s.logAuth,
	}
	for _, signer := range opts.HostSigners {
		cfg.AddHostKey(signer)
	}

	s.wg.Add(1)
	go s.serve(cfg)
	t.Cleanup(s.Close)
	return s
}

func (s *SSHServer) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *SSHServer) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// AuthEvents returns every attempt other than the initial "none" probe.
func (s *SSHServer) AuthEvents() []AuthEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuthEvent(nil), s.events...)
}

// SucceededUsers lists the users that authenticated, in order.
func (s *SSHServer) SucceededUsers() []string {
	var users []string
	for _, e := range s.AuthEvents() {
		if e.Success {
			users = append(users, e.User)
		}
	}
	return users
}

// Commands returns the exec requests received so far.
func (s *SSHServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *SSHServer) checkPassword(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	if want, ok := s.opts.Passwords[conn.User()]; ok && want == string(password) {
		return nil, nil
	}
	return nil, fmt.Errorf("password rejected for %q", conn.User())
}

func (s *SSHServer) checkPublicKey(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	for _, k := range s.opts.AuthorizedKeys[conn.User()] {
		if bytes.Equal(k.Marshal(), key.Marshal()) {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("unknown public key for %q", conn.User())
}

func (s *SSHServer) logAuth(conn ssh.ConnMetadata, method string, err error) {
	if method == "none" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, AuthEvent{User: conn.User(), Method: method, Success: err == nil})
}

func (s *SSHServer) serve(cfg *ssh.ServerConfig) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn, cfg)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

func (s *SSHServer) handleConn(raw net.Conn, cfg *ssh.ServerConfig) {
	sc, chans, reqs, err := ssh.NewServerConn(raw, cfg)
	if err != nil {
		_ = raw.Close()
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, chReqs, err := newChannel.Accept()
		if err != nil {
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.handleSession(ch, chReqs)
		}()
	}
	sessions.Wait()
}

func (s *SSHServer) handleSession(ch ssh.Channel, in <-chan *ssh.Request) {
	defer ch.Close()
	for req := range in {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(in)
			s.runExec(ch, payload.Command)
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(in)
			serveSFTP(ch)
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func (s *SSHServer) runExec(ch ssh.Channel, command string) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()

	status := 0
	if s.opts.Exec != nil {
		status = s.opts.Exec(command, ch, ch.Stderr())
	}
	_ = ch.CloseWrite()
	exit := struct{ Status uint32 }{Status: uint32(status)}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&exit))
}

func serveSFTP(ch ssh.Channel) {
	server, err := sftp.NewServer(ch)
	if err != nil {
		return
	}
	_ = server.Serve()
	_ = server.Close()
}
