package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// ReqContext returns the context for command execution. The first
// SIGINT/SIGTERM cancels it, which lets the migration drain its in-flight
// batch and checkpoint before exiting cleanly. A second signal exits
// immediately, with no guarantee the checkpoint was flushed.
func ReqContext(cctx *cli.Context) context.Context {
	ctx, done := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		log.Warn("shutdown requested, finishing in-flight batch (interrupt again to exit immediately)")
		done()
		<-sigChan
		log.Error("forced exit, the last checkpoint may be stale")
		os.Exit(1)
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	return ctx
}
