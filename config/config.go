package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingLocalPath  = errors.New("local file path must be set")
	ErrMissingHost       = errors.New("remote host must be set")
	ErrMissingUser       = errors.New("username must be set")
	ErrMissingRemotePath = errors.New("remote path must be set")
	ErrInvalidPort       = errors.New("port must be between 1 and 65535")
	ErrInvalidChunkSize  = errors.New("chunk size must be greater than 0")
	ErrInvalidProtocol   = errors.New(`protocol must be "scp" or "sftp"`)
	ErrInvalidTimeout    = errors.New("timeout must not be negative")
)

// Viper keys.
const (
	KeyHost                  = "host"
	KeyPort                  = "port"
	KeyUser                  = "user"
	KeyLocalPath             = "local_path"
	KeyRemotePath            = "remote_path"
	KeyIdentities            = "identities"
	KeyPassword              = "password"
	KeyProtocol              = "protocol"
	KeyChunkSize             = "chunk_size"
	KeyTimeout               = "timeout"
	KeyKnownHostsFile        = "known_hosts"
	KeyInsecureIgnoreHostKey = "insecure_ignore_host_key"
	KeyVerbose               = "verbose"
)

const (
	DefaultPort      = 22
	DefaultChunkSize = 32 * 1024
	DefaultTimeout   = 30 * time.Second
	DefaultProtocol  = "scp"
)

// Config holds everything one upload needs.
type Config struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	User       string   `mapstructure:"user"`
	LocalPath  string   `mapstructure:"local_path"`
	RemotePath string   `mapstructure:"remote_path"`
	Identities []string `mapstructure:"identities"`

	// Password is only read from the environment or the config file; it is
	// never a flag.
	Password string `mapstructure:"password"`

	Protocol  string        `mapstructure:"protocol"`
	ChunkSize int           `mapstructure:"chunk_size"`
	Timeout   time.Duration `mapstructure:"timeout"`

	KnownHostsFile        string `mapstructure:"known_hosts"`
	InsecureIgnoreHostKey bool   `mapstructure:"insecure_ignore_host_key"`

	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyProtocol, DefaultProtocol)
	v.SetDefault(KeyChunkSize, DefaultChunkSize)
	v.SetDefault(KeyTimeout, DefaultTimeout)
}

// Load decodes v into a Config. It does not validate.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Protocol = strings.ToLower(strings.TrimSpace(cfg.Protocol))
	return &cfg, nil
}

// Validate ensures the configuration is complete enough to upload.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return ErrMissingLocalPath
	}
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.User == "" {
		return ErrMissingUser
	}
	if c.RemotePath == "" {
		return ErrMissingRemotePath
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.Protocol != "scp" && c.Protocol != "sftp" {
		return ErrInvalidProtocol
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultIdentities lists the well-known private keys under home/.ssh in
// the order they are tried.
func DefaultIdentities(home string) []string {
	names := []string{"id_rsa", "id_ed25519", "id_ecdsa"}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(home, ".ssh", name)
	}
	return paths
}

// DefaultRemotePath is /home/<user>/<base name of local>.
func DefaultRemotePath(user, local string) string {
	return path.Join("/home", user, filepath.Base(local))
}

// ExpandPath expands a leading ~/ to the home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
