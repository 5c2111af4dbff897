package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() Config {
	return Config{
		Host:       "example.com",
		Port:       22,
		User:       "alice",
		LocalPath:  "a.txt",
		RemotePath: "/home/alice/a.txt",
		Protocol:   "scp",
		ChunkSize:  DefaultChunkSize,
		Timeout:    DefaultTimeout,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "sftp", modify: func(c *Config) { c.Protocol = "sftp" }},
		{name: "missing local path", modify: func(c *Config) { c.LocalPath = "" }, want: ErrMissingLocalPath},
		{name: "missing host", modify: func(c *Config) { c.Host = "" }, want: ErrMissingHost},
		{name: "missing user", modify: func(c *Config) { c.User = "" }, want: ErrMissingUser},
		{name: "missing remote path", modify: func(c *Config) { c.RemotePath = "" }, want: ErrMissingRemotePath},
		{name: "port zero", modify: func(c *Config) { c.Port = 0 }, want: ErrInvalidPort},
		{name: "port too large", modify: func(c *Config) { c.Port = 65536 }, want: ErrInvalidPort},
		{name: "chunk size", modify: func(c *Config) { c.ChunkSize = 0 }, want: ErrInvalidChunkSize},
		{name: "protocol", modify: func(c *Config) { c.Protocol = "ftp" }, want: ErrInvalidProtocol},
		{name: "timeout", modify: func(c *Config) { c.Timeout = -time.Second }, want: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Protocol != DefaultProtocol {
		t.Errorf("Protocol = %q, want %q", cfg.Protocol, DefaultProtocol)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iscp.yaml")
	data := []byte(`host: files.example.com
port: 2222
user: bob
protocol: SFTP
timeout: 5s
identities:
  - /keys/one
  - /keys/two
insecure_ignore_host_key: true
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "files.example.com" || cfg.Port != 2222 || cfg.User != "bob" {
		t.Errorf("unexpected target %+v", cfg)
	}
	if cfg.Protocol != "sftp" {
		t.Errorf("Protocol = %q, want sftp", cfg.Protocol)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if len(cfg.Identities) != 2 || cfg.Identities[1] != "/keys/two" {
		t.Errorf("Identities = %v", cfg.Identities)
	}
	if !cfg.InsecureIgnoreHostKey {
		t.Error("InsecureIgnoreHostKey not set")
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want default", cfg.ChunkSize)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ISCP_PASSWORD", "hunter2")
	t.Setenv("ISCP_CHUNK_SIZE", "1024")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("ISCP")
	v.AutomaticEnv()
	v.BindEnv(KeyPassword)

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Password != "hunter2" {
		t.Errorf("Password not read from environment")
	}
	if cfg.ChunkSize != 1024 {
		t.Errorf("ChunkSize = %d, want 1024", cfg.ChunkSize)
	}
}

func TestDefaultIdentities(t *testing.T) {
	got := DefaultIdentities("/home/alice")
	want := []string{
		"/home/alice/.ssh/id_rsa",
		"/home/alice/.ssh/id_ed25519",
		"/home/alice/.ssh/id_ecdsa",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("identity %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultRemotePath(t *testing.T) {
	tests := map[string]struct {
		user, local, want string
	}{
		"relative": {user: "alice", local: "report.pdf", want: "/home/alice/report.pdf"},
		"absolute": {user: "bob", local: "/tmp/x/data.tar.gz", want: "/home/bob/data.tar.gz"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := DefaultRemotePath(tc.user, tc.local); got != tc.want {
				t.Errorf("DefaultRemotePath() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~/.ssh/known_hosts": filepath.Join(home, ".ssh", "known_hosts"),
		"~":                  home,
		"/etc/ssh":           "/etc/ssh",
		"rel/~/x":            "rel/~/x",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAddress(t *testing.T) {
	cfg := Config{Host: "::1", Port: 2222}
	if got := cfg.Address(); got != "[::1]:2222" {
		t.Errorf("Address() = %q", got)
	}
}
