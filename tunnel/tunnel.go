// Package tunnel publishes a local relay on a remote SSH gateway.  The
// gateway listens on a port of its own and hands every inbound
// connection back over the SSH session (a "remote forward").
package tunnel

import (
	"context"
	"net"
)

// Publisher opens listeners on a remote host.
type Publisher interface {
	// Connect establishes the session with the gateway.
	Connect(ctx context.Context) error

	// Listen asks the gateway to accept connections on addr and
	// returns a listener yielding them.
	Listen(network, addr string) (net.Listener, error)

	// Close tears down the session and every listener opened on it.
	Close() error

	// IsAlive reports whether the session is still up.
	IsAlive() bool
}
