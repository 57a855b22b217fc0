package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relaykv/internal/record"
)

// PutResult is the JSON payload of the put command.
type PutResult struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// GetResult is the JSON payload of the get command.
type GetResult struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Append a value to a key",
		Long: `Append a value to the history of a key. The value is encrypted to
your own key before it leaves the process.

Example:
  relaykv put greeting hello`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				id, err := s.db.Store(ctx, args[0], args[1])
				if err != nil {
					return s.out.StoreError(err)
				}
				if s.out.Format == "json" {
					return s.out.Success(PutResult{Key: args[0], ID: id})
				}
				return s.out.Success(id)
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var singleton bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read the newest value of a key",
		Long: `Read the newest value of a key.

With --singleton the key must have been written exactly once.

Example:
  relaykv get greeting
  relaykv get config --singleton`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				read := s.db.Read
				if singleton {
					read = s.db.ReadSingleton
				}
				value, err := read(ctx, args[0])
				if err != nil {
					return s.out.StoreError(err)
				}
				if s.out.Format == "json" {
					return s.out.Success(GetResult{Key: args[0], Value: value})
				}
				return s.out.Success(value)
			})
		},
	}

	cmd.Flags().BoolVar(&singleton, "singleton", false, "require exactly one record")
	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var raw bool
	var aggregateCount int

	cmd := &cobra.Command{
		Use:   "history <key>",
		Short: "List every record of a key",
		Long: `List every record of a key, oldest first.

Reading a key that holds more individual records than the aggregate count
compacts it into a snapshot.

Example:
  relaykv history greeting
  relaykv history greeting --raw --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if aggregateCount < 0 {
				return NewExitError(ExitCommandError, "--aggregate-count must be non-negative")
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				opts := s.db.QueryOptions()
				opts.Decrypt = !raw
				if cmd.Flags().Changed("aggregate-count") {
					opts.AggregateCount = aggregateCount
				}

				history, err := s.db.ReadHistory(ctx, args[0], opts)
				if err != nil {
					return s.out.StoreError(err)
				}
				if s.out.Format == "json" {
					return s.out.Success(history.Records())
				}
				return s.out.Lines(formatRecords(history.Records()))
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "show stored ciphertext")
	cmd.Flags().IntVar(&aggregateCount, "aggregate-count", 0, "compaction threshold for this read (0 disables)")
	return cmd
}

func formatRecords(records []record.Record) []string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = fmt.Sprintf("%d %s", r.CreatedAt, r.Content)
	}
	return lines
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <key>",
		Short: "Compact a key into a snapshot",
		Long: `Fold the individual records of a key into its snapshot and ask relays
to delete the absorbed records.

Example:
  relaykv aggregate greeting`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.db.Aggregate(ctx, args[0]); err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(fmt.Sprintf("aggregated %s", args[0]))
			})
		},
	}
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a key",
		Long: `Remove every record and the snapshot of a key.

Example:
  relaykv rm greeting`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.db.Remove(ctx, args[0]); err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(fmt.Sprintf("removed %s", args[0]))
			})
		},
	}
}
