// Command imapfs browses and edits an IMAP account as a filesystem.
//
// Connection settings come from flags, IMAPFS_* environment variables or a
// config file:
//
//	IMAPFS_HOST=imap.example.com IMAPFS_USERNAME=me IMAPFS_PASSWORD=secret imapfs ls INBOX
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	imapfs "github.com/BrianLeishman/go-imapfs"
	"github.com/BrianLeishman/go-imapfs/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	fs      *imapfs.FS
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"host":            "host",
	"port":            "port",
	"username":        "username",
	"password":        "password",
	"token":           "token",
	"retry-count":     "retry_count",
	"dial-timeout":    "dial_timeout",
	"timeout":         "timeout",
	"tls-skip-verify": "tls_skip_verify",
	"verbose":         "verbose",
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:                "imapfs",
		Short:              "Browse and edit an IMAP account as a filesystem",
		Long:               "Folders are directories and messages are files named {UID}.eml.",
		SilenceUsage:       true,
		PersistentPreRunE:  a.connect,
		PersistentPostRunE: a.disconnect,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	f.String("host", "", "IMAP server host")
	f.Int("port", 993, "IMAP server port (implicit TLS)")
	f.StringP("username", "u", "", "account user name")
	f.String("password", "", "account password")
	f.String("token", "", "OAuth2 access token, used with XOAUTH2 instead of a password")
	f.Int("retry-count", 3, "retries of idempotent commands after a dropped connection")
	f.Duration("dial-timeout", 0, "connection timeout")
	f.Duration("timeout", 0, "command timeout")
	f.Bool("tls-skip-verify", false, "skip TLS certificate verification")
	f.BoolP("verbose", "v", false, "log IMAP traffic and cache decisions")
	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		lsCmd(a),
		catCmd(a),
		putCmd(a),
		mvCmd(a),
		cpCmd(a),
		rmCmd(a),
		mkdirCmd(a),
		rmdirCmd(a),
		mvdirCmd(a),
		statCmd(a),
		flagsCmd(a),
		refreshCmd(a),
	)
	return root
}

func (a *app) connect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	configure(cfg, cmd.ErrOrStderr())

	if cfg.Token != "" {
		a.fs, err = imapfs.DialOAuth2(cfg.Username, cfg.Token, cfg.Host, cfg.Port)
	} else {
		a.fs, err = imapfs.Dial(cfg.Username, cfg.Password, cfg.Host, cfg.Port)
	}
	return err
}

func (a *app) disconnect(*cobra.Command, []string) error {
	if a.fs == nil {
		return nil
	}
	return a.fs.Close()
}

// configure applies cfg to the session tunables and the loggers.
func configure(cfg *config, logOut io.Writer) {
	session.RetryCount = cfg.RetryCount
	session.DialTimeout = cfg.DialTimeout
	session.CommandTimeout = cfg.Timeout
	session.TLSSkipVerify = cfg.TLSSkipVerify
	session.Verbose = cfg.Verbose
	imapfs.Verbose = cfg.Verbose

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	imapfs.SetSlogLogger(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))
}
