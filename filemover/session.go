// Package filemover is the SSH transport used to authenticate against a
// remote host and open SCP or SFTP write streams on it.
package filemover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	scpauth "github.com/bramvdbogaerde/go-scp/auth"
	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"

	"github.com/byte3-it/iscp/auth"
	"github.com/byte3-it/iscp/transfer"
)

// Protocol selects how the remote file is written.
type Protocol string

const (
	SCP  Protocol = "scp"
	SFTP Protocol = "sftp"
)

var (
	// ErrConnectFailed wraps every failure to reach or talk to the remote
	// that is not a credential being refused.
	ErrConnectFailed = errors.New("connection failed")

	ErrNotAuthenticated     = errors.New("session is not authenticated")
	ErrAlreadyAuthenticated = errors.New("session is already authenticated")
)

// DialConfig holds what is needed to reach the remote host.
type DialConfig struct {
	Host     string
	Port     int
	Timeout  time.Duration
	Protocol Protocol

	// KnownHostsFile is checked first; ~/.ssh/known_hosts is the fallback.
	KnownHostsFile string

	// InsecureIgnoreHostKey skips host key verification entirely.
	InsecureIgnoreHostKey bool

	Logger *log.Logger
}

// Address returns host:port.
func (c DialConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Session is a connection to one remote host. It starts connected but
// unauthenticated; a successful AuthByKey or AuthByPassword makes it ready
// for OpenWriteStream.
type Session struct {
	cfg     DialConfig
	addr    string
	hostKey ssh.HostKeyCallback
	logger  *log.Logger

	pending net.Conn
	client  *ssh.Client
}

var (
	_ auth.Session    = (*Session)(nil)
	_ transfer.Opener = (*Session)(nil)
)

// Dial opens the TCP connection to the remote host.
func Dial(ctx context.Context, cfg DialConfig) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Protocol == "" {
		cfg.Protocol = SCP
	}

	hostKey, err := HostKeyCallback(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: host key verification: %w", ErrConnectFailed, err)
	}

	s := &Session{
		cfg:     cfg,
		addr:    cfg.Address(),
		hostKey: hostKey,
		logger:  cfg.Logger,
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.pending = conn
	return s, nil
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	s.logger.Debug("connected", "addr", s.addr)
	return conn, nil
}

// AuthByKey authenticates with the private key at path. An empty passphrase
// means the key is expected to be unencrypted.
func (s *Session) AuthByKey(ctx context.Context, username, path, passphrase string) error {
	var (
		config ssh.ClientConfig
		err    error
	)
	if passphrase == "" {
		config, err = scpauth.PrivateKey(username, path, s.hostKey)
	} else {
		config, err = scpauth.PrivateKeyWithPassphrase(username, []byte(passphrase), path, s.hostKey)
	}
	if err != nil {
		return classifyKeyError(path, err)
	}
	return s.handshake(ctx, &config)
}

// AuthByPassword authenticates with a password.
func (s *Session) AuthByPassword(ctx context.Context, username, password string) error {
	config, err := scpauth.PasswordKey(username, password, s.hostKey)
	if err != nil {
		return fmt.Errorf("build password config: %w", err)
	}
	return s.handshake(ctx, &config)
}

// handshake runs the SSH handshake with a single auth method. x/crypto closes
// the connection when authentication fails, so the pending connection from
// Dial serves the first attempt and later attempts redial.
func (s *Session) handshake(ctx context.Context, config *ssh.ClientConfig) error {
	if s.authenticated() {
		return ErrAlreadyAuthenticated
	}

	conn := s.pending
	s.pending = nil
	if conn == nil {
		var err error
		if conn, err = s.dial(ctx); err != nil {
			return err
		}
	}

	if s.cfg.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(conn, s.addr, config)
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrConnectFailed, ctxErr)
		}
		return classifyHandshakeError(err)
	}
	conn.SetDeadline(time.Time{})

	s.client = ssh.NewClient(c, chans, reqs)
	s.logger.Debug("ssh session established", "addr", s.addr, "user", config.User, "server", string(c.ServerVersion()))
	return nil
}

// OpenWriteStream opens the remote file for writing using the configured
// protocol. The session must be authenticated.
func (s *Session) OpenWriteStream(ctx context.Context, remotePath string, size uint64, mode os.FileMode) (io.WriteCloser, error) {
	if !s.authenticated() {
		return nil, ErrNotAuthenticated
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch s.cfg.Protocol {
	case SFTP:
		return openSFTP(s.client, remotePath, size, mode, s.logger)
	case SCP:
		return openSCP(s.client, remotePath, size, mode, s.logger)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", s.cfg.Protocol)
	}
}

// authenticated reports whether a credential has been accepted.
func (s *Session) authenticated() bool {
	return s.client != nil
}

// Interrupt closes the authenticated connection so that stream writes in
// progress fail. Unlike Close it may be called from another goroutine.
func (s *Session) Interrupt() error {
	if c := s.client; c != nil {
		return c.Close()
	}
	return nil
}

// Close releases the connection.
func (s *Session) Close() error {
	if s.pending != nil {
		s.pending.Close()
		s.pending = nil
	}
	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		return err
	}
	return nil
}

func classifyKeyError(path string, err error) error {
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) || strings.Contains(err.Error(), "passphrase protected") {
		return fmt.Errorf("%s: %w", path, auth.ErrPassphraseRequired)
	}
	return fmt.Errorf("%w: %s: %v", auth.ErrUnusableKey, path, err)
}

func classifyHandshakeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") {
		return fmt.Errorf("%w: %s", auth.ErrRejected, strings.TrimPrefix(msg, "ssh: handshake failed: "))
	}
	return fmt.Errorf("%w: %w", ErrConnectFailed, err)
}
