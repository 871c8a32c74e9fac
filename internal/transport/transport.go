// Package transport opens the outbound side of a relayed connection.
// The relay only depends on [Dialer], so tests can substitute an
// in-memory or loopback target for the device's link-local address.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources.  Stateless dialers return nil.
	Close() error
}

// DialerFunc adapts a plain function to [Dialer].
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Close is a no-op.
func (f DialerFunc) Close() error { return nil }
