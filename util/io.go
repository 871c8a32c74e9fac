package util

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// Pipe copies bytes between a and b in both directions and returns
// the byte counts for each direction and the first error that is not
// part of a normal shutdown.
//
// When one direction reaches EOF the write side of its destination is
// shut down and the other direction keeps draining, so a peer that
// half-closes still receives the reply.  Both connections are closed
// once both directions are done, either copy fails, or ctx is
// cancelled.
func Pipe(ctx context.Context, a, b net.Conn) (aToB, bToA int64, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		n, err := copyHalf(b, a)
		aToB = n
		errCh <- err
		if err != nil {
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		n, err := copyHalf(a, b)
		bToA = n
		errCh <- err
		if err != nil {
			cancel()
		}
	}()

	both := make(chan struct{})
	go func() {
		wg.Wait()
		close(both)
	}()

	select {
	case <-ctx.Done():
	case <-both:
	}
	a.Close() // unblock any pending reads/writes
	b.Close()
	<-both
	close(errCh)

	for e := range errCh {
		if e != nil && !isHarmless(e) {
			return aToB, bToA, e
		}
	}
	return aToB, bToA, nil
}

// closeWriter is implemented by *net.TCPConn, *net.UnixConn and SSH
// channels.
type closeWriter interface {
	CloseWrite() error
}

// copyHalf copies src to dst and, on a clean EOF, shuts down dst's
// write side.  A dst that cannot half-close reports io.ErrClosedPipe
// so the caller tears both sides down.
func copyHalf(dst net.Conn, src net.Conn) (int64, error) {
	n, err := copyPooled(dst, src)
	if err != nil {
		return n, err
	}
	cw, ok := dst.(closeWriter)
	if !ok {
		return n, io.ErrClosedPipe
	}
	cw.CloseWrite() //nolint:errcheck // the peer may already be gone
	return n, nil
}

func copyPooled(dst io.Writer, src io.Reader) (int64, error) {
	buf := GetBuf()
	defer PutBuf(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// The peer went away while the other direction was still writing.
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
