package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/relaykv/internal/config"
	"github.com/roach88/relaykv/internal/identity"
	"github.com/roach88/relaykv/internal/kv"
	"github.com/roach88/relaykv/internal/transport"
)

// session is an open store for one command.
type session struct {
	db   *kv.DB
	pool *transport.Pool
	out  *OutputFormatter
}

// loadConfig merges the config file, environment and global flags.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if len(opts.Relays) > 0 {
		cfg.Relays = opts.Relays
	}
	if opts.KeyFile != "" {
		cfg.KeyFile = opts.KeyFile
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	if !opts.Verbose {
		setupLogging(cfg.Level())
	}
	return cfg, nil
}

// newFormatter returns the formatter for cmd's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// commandContext returns cmd's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openSession loads the identity, connects to the relays and opens the
// store.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	keys, created, err := identity.LoadOrGenerate(cfg.KeyFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load key", err)
	}
	out := newFormatter(opts, cmd)
	if created {
		out.VerboseLog("generated new key at %s", cfg.KeyFile)
	}

	dialCtx, cancel := context.WithTimeout(commandContext(cmd), config.DialTimeout)
	defer cancel()
	pool, err := transport.Connect(dialCtx, cfg.Relays, transport.WithLogger(slog.Default()))
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to connect to relays", err)
	}
	out.VerboseLog("connected to %v", pool.URLs())

	db, err := kv.New(keys, pool,
		kv.WithQueryOptions(cfg.QueryOptions()),
		kv.WithFetchOptions(cfg.FetchOptions()),
		kv.WithLogger(slog.Default()),
	)
	if err != nil {
		_ = pool.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	return &session{db: db, pool: pool, out: out}, nil
}

func (s *session) Close() {
	if err := s.pool.Close(); err != nil {
		slog.Warn("error closing relays", "error", err)
	}
}

// withSession opens a session, runs fn and closes the session.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(commandContext(cmd), s)
}
