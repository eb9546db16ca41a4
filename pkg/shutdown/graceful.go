package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals derives a context that is cancelled on SIGINT or SIGTERM.
// A second signal is left to the default handler so a stuck drain can
// still be killed.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			signal.Stop(ch)
			cancel()
		case <-ctx.Done():
			signal.Stop(ch)
		}
	}()

	return ctx, cancel
}
