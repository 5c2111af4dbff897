package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/byte3-it/iscp/config"
	"github.com/byte3-it/iscp/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an SSH server that accepts scp and sftp uploads",
		Long: `Run a small SSH server that stores scp and sftp uploads under --root.

Clients authenticate with --password (or ISCP_SERVE_PASSWORD) and/or any key
listed in --authorized-key. The host key is created on first start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v)
		},
	}

	flags := serveCmd.Flags()
	flags.String("root", "./testdata", "directory uploads are written to")
	flags.String("addr", "localhost:2022", "listen address")
	flags.String("password", "", "password accepted for any user")
	flags.String("authorized-key", "", "authorized_keys file")
	flags.String("host-key", "./.ssh/id_ed25519", "host key path")
	flags.String("user", "", "only accept this user name")

	v.BindPFlag("serve.root", flags.Lookup("root"))
	v.BindPFlag("serve.addr", flags.Lookup("addr"))
	v.BindPFlag("serve.password", flags.Lookup("password"))
	v.BindPFlag("serve.authorized_key", flags.Lookup("authorized-key"))
	v.BindPFlag("serve.host_key", flags.Lookup("host-key"))
	v.BindPFlag("serve.user", flags.Lookup("user"))
	v.BindEnv("serve.password", "ISCP_SERVE_PASSWORD")

	return serveCmd
}

func runServe(v *viper.Viper) error {
	if !v.GetBool(config.KeyVerbose) {
		log.SetLevel(log.InfoLevel)
	}

	cfg := server.Config{
		Root:        config.ExpandPath(v.GetString("serve.root")),
		Addr:        v.GetString("serve.addr"),
		HostKeyPath: config.ExpandPath(v.GetString("serve.host_key")),
		User:        v.GetString("serve.user"),
		Password:    v.GetString("serve.password"),
	}
	if path := v.GetString("serve.authorized_key"); path != "" {
		keys, err := server.LoadAuthorizedKeys(config.ExpandPath(path))
		if err != nil {
			return err
		}
		cfg.AuthorizedKeys = keys
	}

	srv, err := server.New(cfg, log.Default())
	if err != nil {
		return err
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("Could not start server", "error", err)
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
