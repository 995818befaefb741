package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/endorses/lippyguard/internal/pkg/logger"
)

// ExitCode is used when a second signal forces the process down.
const ExitCode = 130

// exit is replaced in tests.
var exit = os.Exit

// SetupHandler cancels the provided context on the first SIGINT or SIGTERM so
// a running capture window ends early and its records are still published.
// A second signal exits immediately.
// Returns a cleanup function that should be called when the signal handler is no longer needed
func SetupHandler(ctx context.Context, cancel context.CancelFunc) (cleanup func()) {
	sigCh := make(chan os.Signal, constants.SignalChannelBuffer)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, ending capture session", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("Received second signal, exiting", "signal", sig.String())
			exit(ExitCode)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
