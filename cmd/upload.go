package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/byte3-it/iscp/auth"
	"github.com/byte3-it/iscp/config"
	"github.com/byte3-it/iscp/filemover"
	"github.com/byte3-it/iscp/transfer"
	"github.com/byte3-it/iscp/ui"
)

func runUpload(cmd *cobra.Command, v *viper.Viper, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	console := ui.NewConsole(cmd.ErrOrStderr())
	prompter := ui.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	console.Banner("Interactive SCP File Transfer Tool")

	if err := applyArgs(cfg, args); err != nil {
		return err
	}
	if err := collectInputs(cfg, prompter); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return upload(ctx, cfg, console, prompter, cmd)
}

func upload(ctx context.Context, cfg *config.Config, console *ui.Console, prompter auth.Prompter, cmd *cobra.Command) error {
	logger := log.Default().WithPrefix("iscp")

	console.Info("Connecting to %s...", cfg.Address())
	sess, err := filemover.Dial(ctx, filemover.DialConfig{
		Host:                  cfg.Host,
		Port:                  cfg.Port,
		Timeout:               cfg.Timeout,
		Protocol:              filemover.Protocol(cfg.Protocol),
		KnownHostsFile:        config.ExpandPath(cfg.KnownHostsFile),
		InsecureIgnoreHostKey: cfg.InsecureIgnoreHostKey,
		Logger:                logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	home, err := os.UserHomeDir()
	if err != nil && len(cfg.Identities) == 0 {
		console.Warn("no home directory (%v); default keys are skipped", err)
	}
	res, err := auth.NewNegotiator(prompter, logger).Negotiate(ctx, sess, cfg.User, credentials(cfg, home))
	if err != nil {
		var failed *auth.AllMethodsFailedError
		if errors.As(err, &failed) {
			for _, o := range failed.Outcomes {
				console.Warn("%s", o)
			}
		}
		if filemover.IsHostKeyError(err) {
			console.Warn("host key for %s is not trusted; check --known-hosts", cfg.Address())
		}
		return err
	}
	console.Success("Connected and authenticated successfully (%s)", res.Method)

	// The engine does not watch ctx; an interrupt tears the connection down
	// so the pending write fails and the stream is aborted.
	defer context.AfterFunc(ctx, func() { sess.Interrupt() })()

	plan, err := transfer.OpenPlan(cfg.LocalPath, cfg.RemotePath)
	if err != nil {
		return err
	}
	defer plan.Close()

	console.Info("Starting file transfer...")
	progress := ui.NewProgress(filepath.Base(cfg.LocalPath), cmd.ErrOrStderr())
	start := time.Now()
	err = transfer.NewEngine(cfg.ChunkSize, logger).Transfer(ctx, sess, *plan, progress)
	if perr := progress.Finish(err); perr != nil {
		logger.Debug("progress display", "err", perr)
	}
	if err != nil {
		return err
	}

	console.Summary(cfg.RemotePath, transfer.Sample{BytesSent: plan.Size, TotalBytes: plan.Size, Elapsed: time.Since(start)})
	return nil
}

// applyArgs fills cfg from the positional arguments.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.LocalPath = args[0]
	}
	if len(args) > 1 {
		user, host, remote, err := parseTarget(args[1])
		if err != nil {
			return err
		}
		cfg.Host = host
		if user != "" {
			cfg.User = user
		}
		if remote != "" {
			cfg.RemotePath = remote
		}
	}
	return nil
}

// parseTarget splits [user@]host[:path]. IPv6 hosts go in brackets.
func parseTarget(target string) (user, host, remote string, err error) {
	if i := strings.LastIndex(target, "@"); i >= 0 {
		user, target = target[:i], target[i+1:]
	}

	if strings.HasPrefix(target, "[") {
		end := strings.Index(target, "]")
		if end < 0 {
			return "", "", "", fmt.Errorf("invalid target %q: missing ]", target)
		}
		host, target = target[1:end], target[end+1:]
		if target != "" && !strings.HasPrefix(target, ":") {
			return "", "", "", fmt.Errorf("invalid target %q", target)
		}
		remote = strings.TrimPrefix(target, ":")
	} else {
		host, remote, _ = strings.Cut(target, ":")
	}

	if host == "" {
		return "", "", "", fmt.Errorf("invalid target %q: empty host", target)
	}
	return user, host, remote, nil
}

// collectInputs prompts for every value the command line, config file and
// environment left unset. The port is only asked for together with the host.
func collectInputs(cfg *config.Config, p *ui.Prompter) error {
	var err error
	if cfg.LocalPath == "" {
		if cfg.LocalPath, err = p.AskRequired("Local file path"); err != nil {
			return err
		}
	}
	cfg.LocalPath = config.ExpandPath(cfg.LocalPath)
	info, err := os.Stat(cfg.LocalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLocalFileNotFound, cfg.LocalPath)
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, cfg.LocalPath)
	}

	if cfg.Host == "" {
		if cfg.Host, err = p.AskRequired("Remote host (e.g., example.com or 192.168.1.100)"); err != nil {
			return err
		}
		if cfg.Port, err = p.AskPort("Port"); err != nil {
			return err
		}
	}

	if cfg.User == "" {
		if cfg.User, err = p.AskRequired("Username"); err != nil {
			return err
		}
	}

	if cfg.RemotePath == "" {
		def := config.DefaultRemotePath(cfg.User, cfg.LocalPath)
		if cfg.RemotePath, err = p.Ask("Remote path", def); err != nil {
			return err
		}
	}
	if strings.HasSuffix(cfg.RemotePath, "/") {
		cfg.RemotePath = path.Join(cfg.RemotePath, filepath.Base(cfg.LocalPath))
	}
	return nil
}

// credentials lists the keys to try in order followed by the password.
func credentials(cfg *config.Config, home string) []auth.Credential {
	identities := cfg.Identities
	if len(identities) == 0 && home != "" {
		identities = config.DefaultIdentities(home)
	}

	creds := make([]auth.Credential, 0, len(identities)+1)
	for _, id := range identities {
		creds = append(creds, auth.KeyFileCredential(config.ExpandPath(id)))
	}
	return append(creds, auth.PasswordCredential(cfg.Password))
}
