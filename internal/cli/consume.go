package cli

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aura-studio/hotqueue"
)

// notifyContext ends ctx on SIGINT/SIGTERM so blocking reads stop cleanly.
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func newConsumeCommand(g *globalFlags, errOut io.Writer) *cobra.Command {
	var (
		noBlock     bool
		timeout     time.Duration
		workers     int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "consume <queue>",
		Short: "Print messages as they arrive",
		Long: `Consume messages from a queue and print each one as a JSON line.

By default consume blocks waiting for new messages until interrupted.
Use --no-block to drain what is queued and exit, or --timeout to exit
after the queue has been quiet for that long.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, errOut, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if metricsAddr == "" {
				metricsAddr = s.cfg.MetricsAddr
			}

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			handler := func(_ context.Context, msg any) error {
				mu.Lock()
				defer mu.Unlock()
				return printMessage(out, msg)
			}

			pool := hotqueue.NewWorkerPool(s.queue, handler,
				hotqueue.WithWorkerCount(workers),
				hotqueue.WithReadOptions(hotqueue.Block(!noBlock), hotqueue.Timeout(timeout)),
			)

			if metricsAddr == "" {
				err = pool.Run(ctx)
			} else {
				err = runWithMetrics(ctx, s, metricsAddr, pool.Run)
			}
			s.log.Info().Int64("processed", pool.Processed()).Msg("consume finished")
			return err
		},
	}
	cmd.Flags().BoolVar(&noBlock, "no-block", false, "Drain queued messages and exit instead of waiting")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Exit after waiting this long for a message (0 waits forever)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Number of concurrent consumers")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	return cmd
}

// runWithMetrics serves /metrics while run is active and shuts the server
// down once run returns.
func runWithMetrics(ctx context.Context, s *session, addr string, run func(context.Context) error) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return run(gctx)
	})
	return g.Wait()
}
