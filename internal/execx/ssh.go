package execx

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig specifies connection parameters for remote sampling.
type SSHConfig struct {
	// Host is the hostname or IP address of the remote machine.
	Host string

	// Port is the SSH port. Defaults to 22.
	Port int

	// User is the SSH username.
	User string

	// KeyPath is the path to a private key file. When empty, Password
	// authentication is used instead.
	KeyPath string

	// Password authenticates when no key is configured.
	Password string

	// ConnectTimeout bounds the TCP/SSH handshake. Defaults to 10s.
	ConnectTimeout time.Duration
}

// SSH runs commands on a remote machine. The remote side needs no agent
// installed: plain shell commands are executed and parsed locally.
type SSH struct {
	client *ssh.Client
}

// DialSSH connects to the remote machine described by cfg.
func DialSSH(cfg SSHConfig) (*SSH, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ssh: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	var auth []ssh.AuthMethod
	switch {
	case cfg.KeyPath != "":
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("ssh: reading key %s: %w", cfg.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("ssh: parsing key %s: %w", cfg.KeyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cfg.Password != "":
		auth = append(auth, ssh.Password(cfg.Password))
	default:
		return nil, fmt.Errorf("ssh: no authentication method configured")
	}

	clientCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: auth,
		// TODO: verify against known_hosts once the config grows a
		// host key option.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh: dialing %s: %w", addr, err)
	}
	return &SSH{client: client}, nil
}

// Run executes the command in a fresh session. Sessions cannot be
// reused after a command completes.
func (s *SSH) Run(ctx context.Context, name string, args ...string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh: creating session: %w", err)
	}
	defer session.Close()

	cmd := buildCommandLine(name, args)

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.Output(cmd)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// Best effort: tear the session down so the remote command dies.
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("ssh: %s: %w", name, res.err)
		}
		return strings.TrimRight(string(res.out), "\n"), nil
	}
}

// LookPath probes the remote PATH with command -v.
func (s *SSH) LookPath(name string) (string, error) {
	out, err := s.Run(context.Background(), "command", "-v", name)
	if err != nil {
		return "", fmt.Errorf("ssh: %s not found on remote host: %w", name, err)
	}
	return out, nil
}

// Close tears down the SSH connection.
func (s *SSH) Close() error {
	return s.client.Close()
}

// buildCommandLine assembles a shell command, quoting arguments that
// contain whitespace. The sampled utilities take only simple flags, so
// full shell escaping is not needed.
func buildCommandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = "'" + a + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
