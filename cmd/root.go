package cmd

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/byte3-it/iscp/config"
	"github.com/byte3-it/iscp/ui"
)

// newRootCmd builds the iscp command tree around v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "iscp [local-file] [[user@]host[:remote-path]]",
		Short: "Interactive file upload over SSH",
		Long: `iscp uploads one local file to a remote host over SSH.

Anything not given on the command line, in the config file or in the
environment is asked for interactively. Authentication tries each private key
in turn (~/.ssh/id_rsa, ~/.ssh/id_ed25519, ~/.ssh/id_ecdsa unless --identity is
given) and falls back to a password.

Examples:
  iscp
  iscp report.pdf alice@files.example.com
  iscp -P 2222 --protocol sftp data.tar.gz alice@10.0.0.5:/srv/incoming/`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, v, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.iscp.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	flags := rootCmd.Flags()
	flags.IntP("port", "P", config.DefaultPort, "remote SSH port")
	flags.StringP("user", "u", "", "remote username")
	flags.StringArrayP("identity", "i", nil, "private key to try, in order (repeatable)")
	flags.String("protocol", config.DefaultProtocol, `write protocol, "scp" or "sftp"`)
	flags.Int("chunk-size", config.DefaultChunkSize, "bytes read from the local file per write")
	flags.Duration("timeout", config.DefaultTimeout, "connect and handshake timeout")
	flags.String("known-hosts", "", "known_hosts file used to verify the host key")
	flags.Bool("insecure-ignore-host-key", false, "do not verify the remote host key")

	v.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))
	v.BindPFlag(config.KeyPort, flags.Lookup("port"))
	v.BindPFlag(config.KeyUser, flags.Lookup("user"))
	v.BindPFlag(config.KeyIdentities, flags.Lookup("identity"))
	v.BindPFlag(config.KeyProtocol, flags.Lookup("protocol"))
	v.BindPFlag(config.KeyChunkSize, flags.Lookup("chunk-size"))
	v.BindPFlag(config.KeyTimeout, flags.Lookup("timeout"))
	v.BindPFlag(config.KeyKnownHostsFile, flags.Lookup("known-hosts"))
	v.BindPFlag(config.KeyInsecureIgnoreHostKey, flags.Lookup("insecure-ignore-host-key"))

	config.SetDefaults(v)
	v.SetEnvPrefix("ISCP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{config.KeyHost, config.KeyLocalPath, config.KeyRemotePath, config.KeyPassword} {
		v.BindEnv(key)
	}

	rootCmd.AddCommand(newServeCmd(v))
	return rootCmd
}

// initConfig reads in config file and ENV variables
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".iscp")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	if v.GetBool(config.KeyVerbose) {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("using config file", "path", used)
	}
	return nil
}

// Execute runs the command line and exits with a status describing the
// failure class.
func Execute() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		ui.NewConsole(os.Stderr).Error("%v", err)
		os.Exit(ExitCode(err))
	}
}
