package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string   // "json" | "text"
	ConfigPath string   // optional YAML config file
	Relays     []string // overrides the configured relays
	KeyFile    string   // overrides the configured key file
	Trace      bool     // print spans to stderr
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the relaykv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	var stopTracing func(context.Context) error

	cmd := &cobra.Command{
		Use:   "relaykv",
		Short: "relaykv - key-value storage on relays",
		Long: `A key-value store whose values live on relays as signed, encrypted
records. Each key keeps its full history; long histories are compacted
into snapshots.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			setupLogging(level)

			if opts.Trace {
				stop, err := setupTracing(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				stopTracing = stop
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if stopTracing == nil {
				return nil
			}
			defer func() { stopTracing = nil }()
			return stopTracing(commandContext(cmd))
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringArrayVar(&opts.Relays, "relay", nil, "relay URL (repeatable, overrides config)")
	cmd.PersistentFlags().StringVar(&opts.KeyFile, "key", "", "path to key file (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "print OpenTelemetry spans to stderr")

	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewAggregateCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewCounterCommand(opts))
	cmd.AddCommand(NewPaidCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setupLogging installs a stderr text logger as the default.
func setupLogging(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
