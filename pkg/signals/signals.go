package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Context returns a context that is cancelled on the first SIGINT or
// SIGTERM. A second signal exits immediately.
func Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		log.Warn().Str("signal", sig.String()).Msg("shutting down, send again to exit now")
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
