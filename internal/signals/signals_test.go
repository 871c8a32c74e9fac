package signals

import (
	"bytes"
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"dptlink/util"
)

func quietLogger() (*util.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := util.NewLogger(1)
	l.SetOutput(&buf)
	return l, &buf
}

func TestShutdownContext_FirstSignalCancels(t *testing.T) {
	logger, buf := quietLogger()
	ctx, release := ShutdownContext(context.Background(), logger, syscall.SIGUSR1)
	defer release()

	syscall.Kill(syscall.Getpid(), syscall.SIGUSR1) //nolint:errcheck

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
	if !strings.Contains(buf.String(), "cleaning up") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestShutdownContext_SecondSignalExits(t *testing.T) {
	codes := make(chan int, 1)
	exit = func(code int) { codes <- code }
	defer func() { exit = osExit }()

	logger, _ := quietLogger()
	ctx, release := ShutdownContext(context.Background(), logger, syscall.SIGUSR2)
	defer release()

	syscall.Kill(syscall.Getpid(), syscall.SIGUSR2) //nolint:errcheck
	<-ctx.Done()
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR2) //nolint:errcheck

	select {
	case code := <-codes:
		if code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second signal did not force exit")
	}
}

func TestShutdownContext_Release(t *testing.T) {
	logger, _ := quietLogger()
	ctx, release := ShutdownContext(context.Background(), logger, syscall.SIGUSR1)

	release()
	release()
	if ctx.Err() == nil {
		t.Error("release should cancel the context")
	}
}

func TestShutdownContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	logger, _ := quietLogger()
	ctx, release := ShutdownContext(parent, logger, syscall.SIGUSR1)
	defer release()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation not propagated")
	}
}
