package sshutils

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type HostKeyPolicy string

const (
	// HostKeyAutoAdd verifies known hosts and records unknown ones.
	HostKeyAutoAdd  HostKeyPolicy = "auto-add"
	HostKeyStrict   HostKeyPolicy = "strict"
	HostKeyInsecure HostKeyPolicy = "insecure"

	knownHostsPermissions = 0600
	sshDirPermissions     = 0700
)

func ParseHostKeyPolicy(s string) (HostKeyPolicy, error) {
	switch p := HostKeyPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return HostKeyAutoAdd, nil
	case HostKeyAutoAdd, HostKeyStrict, HostKeyInsecure:
		return p, nil
	default:
		return "", fmt.Errorf("unknown host key policy %q (want auto-add, strict or insecure)", s)
	}
}

// DefaultKnownHostsPath returns ~/.ssh/known_hosts, or "" if the home
// directory cannot be found.
func DefaultKnownHostsPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func hostKeyCallback(policy HostKeyPolicy, knownHostsPath string) (ssh.HostKeyCallback, error) {
	if policy == HostKeyInsecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path, err := homedir.Expand(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand known_hosts path: %w", err)
	}
	if path == "" {
		return nil, fmt.Errorf("known_hosts path is required for host key policy %q", policy)
	}

	switch policy {
	case HostKeyStrict:
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		return cb, nil
	case HostKeyAutoAdd, "":
		return autoAddCallback(path)
	default:
		return nil, fmt.Errorf("unknown host key policy %q", policy)
	}
}

// autoAddCallback accepts keys already in path, rejects changed keys and
// appends hosts that have never been seen.
func autoAddCallback(path string) (ssh.HostKeyCallback, error) {
	if err := os.MkdirAll(filepath.Dir(path), sshDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, knownHostsPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open known_hosts: %w", err)
	}
	f.Close()

	known, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	var mu sync.Mutex
	added := make(map[string]ssh.PublicKey)

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := known(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err == nil || !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		if prev, ok := added[hostname]; ok {
			if bytes.Equal(prev.Marshal(), key.Marshal()) {
				return nil
			}
			return fmt.Errorf("host key for %s changed since it was added", hostname)
		}

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, knownHostsPermissions)
		if err != nil {
			return fmt.Errorf("failed to open known_hosts: %w", err)
		}
		defer f.Close()
		line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("failed to add host key: %w", err)
		}
		added[hostname] = key
		return nil
	}, nil
}

// knownHostKeyAlgorithms lists the host key algorithms that can be checked
// against what knownHostsPath records for addr. The handshake is limited to
// them; otherwise the server may offer a key type that is not on file and
// the check fails as a mismatch. nil leaves the choice to the client.
func knownHostKeyAlgorithms(policy HostKeyPolicy, knownHostsPath, addr string) ([]string, error) {
	if policy == HostKeyInsecure {
		return nil, nil
	}
	path, err := homedir.Expand(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand known_hosts path: %w", err)
	}
	known, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	var keyErr *knownhosts.KeyError
	if !errors.As(known(addr, lookupAddr, lookupKey{}), &keyErr) || len(keyErr.Want) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var algorithms []string
	for _, want := range keyErr.Want {
		for _, algo := range algorithmsForKeyType(want.Key.Type()) {
			if !seen[algo] {
				seen[algo] = true
				algorithms = append(algorithms, algo)
			}
		}
	}
	sort.Strings(algorithms)
	return algorithms, nil
}

func algorithmsForKeyType(keyType string) []string {
	if keyType == ssh.KeyAlgoRSA {
		return []string{ssh.KeyAlgoRSASHA512, ssh.KeyAlgoRSASHA256, ssh.KeyAlgoRSA}
	}
	return []string{keyType}
}

var lookupAddr = &net.TCPAddr{IP: net.IPv4zero}

// lookupKey matches no known_hosts line, so checking it reports every key
// on file for the host.
type lookupKey struct{}

func (lookupKey) Type() string { return "piwakawaka-lookup" }
func (lookupKey) Marshal() []byte { return []byte{} }
func (lookupKey) Verify([]byte, *ssh.Signature) error {
	return errors.New("lookup key cannot verify")
}
