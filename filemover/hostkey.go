package filemover

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyCallback picks host key verification for cfg: an explicit
// known_hosts file, then ~/.ssh/known_hosts, then accept with a warning.
func HostKeyCallback(cfg DialConfig) (ssh.HostKeyCallback, error) {
	logger := cfg.Logger
	if cfg.InsecureIgnoreHostKey {
		logger.Warn("host key verification disabled", "addr", cfg.Address())
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if cfg.KnownHostsFile != "" {
		callback, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", cfg.KnownHostsFile, err)
		}
		return callback, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".ssh", "known_hosts")
		if _, err := os.Stat(path); err == nil {
			callback, err := knownhosts.New(path)
			if err == nil {
				return callback, nil
			}
			logger.Warn("could not parse known_hosts", "path", path, "err", err)
		}
	}

	logger.Warn("no known_hosts file, host key not verified", "addr", cfg.Address())
	return func(string, net.Addr, ssh.PublicKey) error { return nil }, nil
}

// IsHostKeyError reports whether err came from a known_hosts mismatch or an
// unknown host.
func IsHostKeyError(err error) bool {
	var keyErr *knownhosts.KeyError
	return errors.As(err, &keyErr)
}
