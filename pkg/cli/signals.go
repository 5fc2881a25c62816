package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that stop webdev gracefully.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context that is canceled on SIGINT or
// SIGTERM. A second signal exits the process immediately with status 130,
// for builds or dev servers that ignore the first one.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, ShutdownSignals...)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigChan:
			os.Exit(130)
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}
