package relay

import (
	"context"
	"fmt"
	"time"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/transport"
)

// Probe dials addr once and closes the connection.  Failure wraps
// errors.ErrRouteUnreachable along with the dial error.
func Probe(ctx context.Context, d transport.Dialer, addr string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := d.Dial(ctx, "tcp6", addr)
	if err != nil {
		return fmt.Errorf("probe %s: %w: %w", addr, dlerr.ErrRouteUnreachable, err)
	}
	return conn.Close()
}
