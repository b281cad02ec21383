package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aura-studio/hotqueue"
)

func newPutCommand(g *globalFlags, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "put <queue> <message>...",
		Short: "Push one or more messages onto a queue",
		Long:  "Push messages onto the tail of a queue. Arguments that parse as JSON are stored as JSON values, anything else as a string.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, errOut, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			msgs := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				msgs = append(msgs, parseMessage(a))
			}
			if err := s.queue.Put(cmd.Context(), msgs...); err != nil {
				return err
			}
			s.log.Debug().Int("count", len(msgs)).Msg("messages put")
			return nil
		},
	}
}

func newGetCommand(g *globalFlags, errOut io.Writer) *cobra.Command {
	var (
		block   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "get <queue>",
		Short: "Pop one message from a queue",
		Long:  "Pop the message at the head of a queue and print it as JSON. Prints nothing when the queue is empty or the wait times out.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, errOut, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			msg, ok, err := s.queue.Get(ctx, hotqueue.Block(block), hotqueue.Timeout(timeout))
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if !ok {
				s.log.Debug().Msg("no message")
				return nil
			}
			return printMessage(cmd.OutOrStdout(), msg)
		},
	}
	cmd.Flags().BoolVar(&block, "block", false, "Wait for a message to become available")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "With --block, give up after this long (0 waits forever)")
	return cmd
}

func newLenCommand(g *globalFlags, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "len <queue>",
		Short: "Print the number of pending messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, errOut, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.queue.Len(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}

func newClearCommand(g *globalFlags, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <queue>",
		Short: "Delete all pending messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, errOut, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.queue.Clear(cmd.Context()); err != nil {
				return err
			}
			s.log.Info().Str("key", s.queue.Key()).Msg("queue cleared")
			return nil
		},
	}
}
