// Package signals turns process interrupts into context cancellation.
// The first SIGINT or SIGTERM cancels the context so that the normal
// teardown path runs; a second one exits immediately with status 1.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"dptlink/util"
)

// Default is the set of signals that trigger shutdown.
var Default = []os.Signal{os.Interrupt, syscall.SIGTERM}

// exit is replaced in tests.
var exit = osExit

var osExit = os.Exit

// ShutdownContext returns a child of parent that is cancelled on the
// first of sigs (Default when empty).  The returned release function
// cancels the context and uninstalls the handler.
func ShutdownContext(parent context.Context, logger *util.Logger, sigs ...os.Signal) (context.Context, func()) {
	if len(sigs) == 0 {
		sigs = Default
	}
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	ctx, cancel := context.WithCancel(parent)
	release := make(chan struct{})
	stopped := make(chan struct{})
	go watch(ch, cancel, release, stopped, logger)

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			cancel()
			signal.Stop(ch)
			close(release)
		})
		<-stopped
	}
}

func watch(ch <-chan os.Signal, cancel context.CancelFunc, release <-chan struct{}, stopped chan<- struct{}, logger *util.Logger) {
	defer close(stopped)

	select {
	case sig := <-ch:
		logger.Info("received %v, cleaning up (repeat to force exit)", sig)
		cancel()
	case <-release:
		return
	}

	select {
	case sig := <-ch:
		logger.Error("received %v again, exiting without cleanup", sig)
		exit(1)
	case <-release:
	}
}
