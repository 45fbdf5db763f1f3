// Package cli wires the livedesk commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/logging"
)

// Version is set at build time:
// go build -ldflags "-X github.com/room4-2/livedesk/cli.Version=1.0.0"
var Version = "dev"

// loadConfig is swapped in tests
var loadConfig = config.LoadConfig

type rootOptions struct {
	logLevel  string
	logFormat string
	logFile   string

	cfg *config.Config
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "livedesk",
		Short:         "livedesk lets a live model see and drive this desktop.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initialize(cmd)
		},
	}
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (console or json)")
	flags.StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this rotated file")

	cmd.AddCommand(newServeCommand(opts), newChatCommand(opts), newVersionCommand())
	return cmd
}

// initialize loads configuration, applies flag overrides and starts logging.
// chat logs to stderr so replies on stdout stay readable.
func (o *rootOptions) initialize(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logger.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logger.Format = o.logFormat
	}
	if o.logFile != "" {
		cfg.Logger.LogFile = o.logFile
	}
	o.cfg = cfg

	if cmd.Name() == "chat" {
		logging.Initialize(cfg.Logger, zapcore.Lock(os.Stderr))
	} else {
		logging.Init(cfg.Logger)
	}
	logging.L().Info("starting livedesk", zap.String("version", Version), zap.String("command", cmd.Name()))
	return nil
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	err := NewRootCommand().Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
