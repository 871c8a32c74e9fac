package core

import (
	"bufio"
	"context"
	"io"
	"os"

	"golang.org/x/term"

	"dptlink/util"
)

// IsInteractive reports whether f is a terminal a user can press Enter
// on.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// waitForStop blocks until ctx is cancelled or, when interactive, a
// line is read from in.
func waitForStop(ctx context.Context, logger *util.Logger, in io.Reader, interactive bool) {
	if !interactive || in == nil {
		logger.Info("press Ctrl+C to stop")
		<-ctx.Done()
		return
	}

	logger.Info("press Enter to stop")
	line := make(chan struct{})
	go func() {
		bufio.NewReader(in).ReadString('\n') //nolint:errcheck
		close(line)
	}()

	select {
	case <-ctx.Done():
	case <-line:
	}
}
