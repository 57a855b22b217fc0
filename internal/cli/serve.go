package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/relaykv/internal/config"
	"github.com/roach88/relaykv/internal/relay"
	"github.com/roach88/relaykv/internal/relay/sqliterelay"
	"github.com/roach88/relaykv/internal/relay/wsrelay"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a websocket relay backed by SQLite",
		Long: `Run a relay that speaks the websocket relay protocol and stores envelopes
in a SQLite database (created if it doesn't exist). Prometheus metrics are
served at /metrics.

Example:
  relaykv serve --addr :7447 --db ./relay.db
  relaykv put greeting hello --relay ws://localhost:7447`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":7447", "listen address")
	cmd.Flags().StringVar(&opts.Database, "db", "relay.db", "path to SQLite database")

	return cmd
}

// newServeMux routes the relay protocol at / and metrics at /metrics.
func newServeMux(r relay.Relay, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", wsrelay.Handler(r, logger))
	return mux
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	slog.Info("opening database", "path", opts.Database)
	st, err := sqliterelay.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           newServeMux(st, slog.Default()),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	slog.Info("relay listening", "addr", ln.Addr().String(), "db", opts.Database)
	fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on ws://%s\n", ln.Addr())

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "relay server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Hijacked websocket connections are not tracked by Shutdown.
		slog.Warn("relay shutdown incomplete", "error", err)
	}

	slog.Info("relay stopped gracefully")
	return nil
}
