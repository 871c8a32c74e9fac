// Package hoststack is the boundary to the host's network stack.
//
// The lifecycle manager never touches the kernel directly; it asks a
// [Stack] to read an interface's hardware address and to add or remove
// a link-scope address and the fe80::/64 route.  Every operation is a
// fallible request that reports success or failure.
package hoststack

import (
	"net"
	"net/netip"
)

// Stack abstracts the privileged host operations the tool performs.
// Remove* operations treat an already-absent resource as success;
// Add* operations report an existing resource as an error wrapping
// errors.ErrAlreadyExists.
type Stack interface {
	// HardwareAddr returns the MAC address of the named interface.
	HardwareAddr(iface string) (net.HardwareAddr, error)

	// AddAddress installs addr with link scope on iface.
	AddAddress(iface string, addr netip.Prefix) error

	// RemoveAddress removes addr from iface.
	RemoveAddress(iface string, addr netip.Prefix) error

	// AddRoute installs a route to dst via iface, tagged as learned
	// from router advertisements.
	AddRoute(iface string, dst netip.Prefix) error

	// RemoveRoute removes the route added by AddRoute.
	RemoveRoute(iface string, dst netip.Prefix) error
}

func toIPNet(p netip.Prefix) *net.IPNet {
	return &net.IPNet{
		IP:   net.IP(p.Addr().AsSlice()),
		Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
	}
}
