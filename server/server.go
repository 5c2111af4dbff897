// Package server is a small SSH server that accepts scp and sftp uploads
// into a root directory.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/charmbracelet/wish/scp"
	gossh "golang.org/x/crypto/ssh"
)

var ErrNoAuth = errors.New("no password or authorized keys configured")

type Config struct {
	// Root is the directory uploads land in.
	Root string
	Addr string

	// HostKeyPath is created on first start when missing.
	HostKeyPath string

	// User, when set, is the only user name accepted.
	User string

	Password       string
	AuthorizedKeys []gossh.PublicKey
}

type Server struct {
	cfg    Config
	srv    *ssh.Server
	logger *log.Logger
}

func New(cfg Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Password == "" && len(cfg.AuthorizedKeys) == 0 {
		return nil, ErrNoAuth
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	cfg.Root = root

	s := &Server{cfg: cfg, logger: logger}
	handler := scp.NewFileSystemHandler(root)

	opts := []ssh.Option{
		wish.WithAddress(cfg.Addr),
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithSubsystem("sftp", s.sftpSubsystem()),
		wish.WithMiddleware(
			scp.Middleware(handler, handler),
			logging.StructuredMiddleware(),
		),
	}
	if cfg.Password != "" {
		opts = append(opts, wish.WithPasswordAuth(s.passwordHandler))
	}
	if len(cfg.AuthorizedKeys) > 0 {
		opts = append(opts, wish.WithPublicKeyAuth(s.publicKeyHandler))
	}

	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}
	s.srv = srv
	return s, nil
}

// Root returns the absolute upload directory.
func (s *Server) Root() string {
	return s.cfg.Root
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	ok := s.userAllowed(ctx.User()) && password == s.cfg.Password
	if !ok {
		s.logger.Warn("password rejected", "user", ctx.User(), "remote", ctx.RemoteAddr())
	}
	return ok
}

func (s *Server) publicKeyHandler(ctx ssh.Context, key ssh.PublicKey) bool {
	if !s.userAllowed(ctx.User()) {
		return false
	}
	for _, k := range s.cfg.AuthorizedKeys {
		if ssh.KeysEqual(k, key) {
			return true
		}
	}
	s.logger.Debug("public key rejected", "user", ctx.User(), "fingerprint", gossh.FingerprintSHA256(key))
	return false
}

func (s *Server) userAllowed(user string) bool {
	return s.cfg.User == "" || s.cfg.User == user
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting SSH server", "addr", ln.Addr().String(), "root", s.cfg.Root)
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping SSH Server")
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// LoadAuthorizedKeys parses an authorized_keys file.
func LoadAuthorizedKeys(path string) ([]gossh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys []gossh.PublicKey
	for len(bytes.TrimSpace(data)) > 0 {
		key, _, _, rest, err := gossh.ParseAuthorizedKey(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		keys = append(keys, key)
		data = rest
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no keys", path)
	}
	return keys, nil
}
