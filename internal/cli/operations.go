package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/relaykv/internal/kv"
	"github.com/roach88/relaykv/internal/operation"
)

// listContract stores arbitrary JSON values for the list command.
var listContract = operation.AppendContract[json.RawMessage]("list")

// NewCounterCommand creates the counter command group.
func NewCounterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Increment, decrement and read counters",
		Long: `A counter is a key whose history is a sequence of increments and
decrements. Its value is their sum.

Example:
  relaykv counter incr visits
  relaykv counter get visits`,
	}

	store := func(op operation.CounterOp) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if _, err := kv.StoreEvent(ctx, s.db, args[0], operation.Counter, op); err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(fmt.Sprintf("%s %s", op, args[0]))
			})
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "incr <key>",
		Short:         "Add one to a counter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          store(operation.Increment),
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "decr <key>",
		Short:         "Subtract one from a counter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          store(operation.Decrement),
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Read a counter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				n, err := kv.ReadEvent(ctx, s.db, args[0], operation.Counter)
				if err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(n)
			})
		},
	})

	return cmd
}

// NewPaidCommand creates the paid command group.
func NewPaidCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paid",
		Short: "Record payments and check whether a key was ever paid",
		Long: `A payment key holds payment records. It reads as paid once any record
has status "paid".

Example:
  relaykv paid record order-17 2500 pending
  relaykv paid record order-17 2500 paid
  relaykv paid get order-17`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "record <key> <amount> <status>",
		Short:         "Record a payment",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}
			payment := operation.Payment{Amount: amount, Status: args[2]}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if _, err := kv.StoreEvent(ctx, s.db, args[0], operation.PaymentStatus, payment); err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(fmt.Sprintf("recorded %s for %s", payment, args[0]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Report whether a key was ever paid",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				paid, err := kv.ReadEvent(ctx, s.db, args[0], operation.PaymentStatus)
				if err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(paid)
			})
		},
	})

	return cmd
}

// NewListCommand creates the list command group.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Append JSON values to a list",
		Long: `A list key holds appended JSON values, read back in insertion order.

Example:
  relaykv list push todo '"buy milk"'
  relaykv list get todo`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "push <key> <json>",
		Short:         "Append a JSON value",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return NewExitError(ExitCommandError, fmt.Sprintf("value is not valid JSON: %s", args[1]))
			}
			push := operation.Push[json.RawMessage]{Value: json.RawMessage(args[1])}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if _, err := kv.StoreEvent(ctx, s.db, args[0], listContract, push); err != nil {
					return s.out.StoreError(err)
				}
				return s.out.Success(fmt.Sprintf("pushed to %s", args[0]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <key>",
		Short:         "Read a list",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				list, err := kv.ReadEvent(ctx, s.db, args[0], listContract)
				if err != nil {
					return s.out.StoreError(err)
				}
				if s.out.Format == "json" {
					return s.out.Success(list)
				}
				lines := make([]string, len(list))
				for i, v := range list {
					lines[i] = string(v)
				}
				return s.out.Lines(lines)
			})
		},
	})

	return cmd
}
