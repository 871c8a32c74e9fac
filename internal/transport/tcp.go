package transport

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// TCPDialer establishes plain TCP connections.  When Interface is set,
// link-local destinations without a zone are scoped to it so the
// kernel knows which link to use.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration
	Interface string
}

// Dial connects to address.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	return dialer.DialContext(ctx, network, d.scope(address))
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }

func (d *TCPDialer) scope(address string) string {
	if d.Interface == "" {
		return address
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil || ap.Addr().Zone() != "" || !ap.Addr().IsLinkLocalUnicast() {
		return address
	}
	return netip.AddrPortFrom(ap.Addr().WithZone(d.Interface), ap.Port()).String()
}
