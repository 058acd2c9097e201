package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/bacalhau-project/piwakawaka/pkg/config"
	"github.com/bacalhau-project/piwakawaka/pkg/console"
	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/sshutils"
)

var VersionNumber = "v0.1.0"

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"host":              "host",
	"port":              "port",
	"password":          "password",
	"key":               "key_paths",
	"use-agent":         "use_agent",
	"known-hosts":       "known_hosts",
	"host-key-policy":   "host_key_policy",
	"dial-timeout":      "dial_timeout",
	"log-level":         "log.level",
	"log-file":          "log.path",
	"verbose":           "log.console",
	"max-depth":         "ship.max_depth",
	"compression":       "ship.compression",
	"archive-name":      "ship.archive_name",
	"create-remote-dir": "ship.create_remote_dir",
	"echo":              "ship.echo_remote",
	"progress":          "progress.enabled",
	"bar":               "progress.bar",
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v           *viper.Viper
	cfgFile     string
	askPassword bool
	identities  []string

	cfg     *config.Config
	console *console.Console
	open    func(ctx context.Context, sc *sshutils.SessionConfig) (*sshutils.Session, error)
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), open: sshutils.Open}

	rootCmd := &cobra.Command{
		Use:   "piwakawaka",
		Short: "Run commands on and ship files to Piwakawaka over SSH",
		Long: `piwakawaka opens an SSH/SFTP session to the Piwakawaka server as the first
admin identity that authenticates, then runs a remote command, uploads a
single file, or zips a whole directory, uploads it and unpacks it remotely.`,
		Version:           VersionNumber,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.piwakawaka.yaml)")
	flags.String("host", sshutils.DefaultHost, "remote host")
	flags.Int("port", sshutils.DefaultPort, "remote SSH port")
	flags.String("password", "", "password, also used to unlock encrypted keys")
	flags.BoolVar(&a.askPassword, "ask-password", false, "prompt for the password")
	flags.StringSliceVar(&a.identities, "identity", nil, "candidate identity as user[:Display Name], tried in order (repeatable)")
	flags.StringSlice("key", nil, "private key file to offer (repeatable)")
	flags.Bool("use-agent", true, "offer keys held by the SSH agent")
	flags.String("known-hosts", "", "known_hosts file (default is ~/.ssh/known_hosts)")
	flags.String("host-key-policy", string(sshutils.HostKeyAutoAdd), "auto-add, strict or insecure")
	flags.Duration("dial-timeout", 0, "TCP connect timeout, 0 for none")
	flags.String("log-level", logger.InfoLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-file", logger.DefaultLogPath, "log file path")
	flags.BoolP("verbose", "v", false, "also log to stderr")

	rootCmd.AddCommand(
		getExecCmd(a),
		getPutCmd(a),
		getShipCmd(a),
		getManifestCmd(a),
		getConfigCmd(a),
		getWhoamiCmd(a),
		getCompletionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// initConfig reads in config file, .env and ENV variables, then applies
// flags and sets up logging and console output.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	bindFlags(a.v, cmd.Flags())

	if len(a.identities) > 0 {
		ids, err := models.ParseIdentities(a.identities)
		if err != nil {
			return err
		}
		a.v.Set("identities", ids)
	}
	if a.askPassword {
		password, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.v.Set("password", password)
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Initialize(cfg.Log); err != nil {
		return err
	}
	l := logger.Get()
	if used := a.v.ConfigFileUsed(); used != "" {
		l.Debugf("Using config file: %s", used)
	}

	a.console = console.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	a.console.SetProgressBar(cfg.Progress.Bar)
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed {
			_ = v.BindPFlag(key, f)
		}
	})
}

// promptPassword reads a password without echo from a terminal, or a single
// line from any other reader.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openSession connects with the loaded configuration and greets the user.
func (a *app) openSession(ctx context.Context) (*sshutils.Session, error) {
	sc := a.cfg.SessionConfig()
	sc.Greeter = a.console
	sc.Logger = logger.Get()
	return a.open(ctx, sc)
}

// withSession opens a session, runs fn and closes the session again.
func (a *app) withSession(ctx context.Context, fn func(*sshutils.Session) error) error {
	session, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Get().Warnf("Failed to close session: %v", err)
		}
	}()
	return fn(session)
}
