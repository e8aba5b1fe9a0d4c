package signals

import (
	"context"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a channel closed on the first SIGINT or SIGTERM.
// A second signal is left to the default handler and terminates the process.
func SetupSignalHandler() <-chan struct{} {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	stopCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		stop()
		close(stopCh)
	}()
	return stopCh
}
