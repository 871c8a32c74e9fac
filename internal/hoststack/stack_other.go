//go:build !linux

package hoststack

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"

	dlerr "dptlink/internal/errors"
)

// Unsupported reads hardware addresses through the net package and
// refuses every mutation.
type Unsupported struct{}

// New returns the platform's Stack.
func New() Stack { return Unsupported{} }

// HardwareAddr reads the interface's link-layer address.
func (Unsupported) HardwareAddr(iface string) (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	if len(ifi.HardwareAddr) == 0 {
		return nil, fmt.Errorf("interface %s has no hardware address", iface)
	}
	return ifi.HardwareAddr, nil
}

func (Unsupported) AddAddress(string, netip.Prefix) error    { return unsupported() }
func (Unsupported) RemoveAddress(string, netip.Prefix) error { return unsupported() }
func (Unsupported) AddRoute(string, netip.Prefix) error      { return unsupported() }
func (Unsupported) RemoveRoute(string, netip.Prefix) error   { return unsupported() }

func unsupported() error {
	return fmt.Errorf("%s: %w", runtime.GOOS, dlerr.ErrUnsupported)
}
