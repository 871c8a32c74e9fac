//go:build linux

package hoststack

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	dlerr "dptlink/internal/errors"
)

// Netlink implements [Stack] with rtnetlink requests.  The process
// needs CAP_NET_ADMIN for the mutating operations.
type Netlink struct{}

// New returns the platform's Stack.
func New() Stack { return Netlink{} }

// HardwareAddr reads the interface's link-layer address.
func (Netlink) HardwareAddr(iface string) (net.HardwareAddr, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", iface, err)
	}
	hw := link.Attrs().HardwareAddr
	if len(hw) == 0 {
		return nil, fmt.Errorf("link %s has no hardware address", iface)
	}
	return hw, nil
}

// AddAddress is the equivalent of
// `ip -6 address add dev <iface> scope link <addr>`.
func (Netlink) AddAddress(iface string, addr netip.Prefix) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("link %s: %w", iface, err)
	}
	a := &netlink.Addr{IPNet: toIPNet(addr), Scope: int(netlink.SCOPE_LINK)}
	if err := netlink.AddrAdd(link, a); err != nil {
		return classify(err)
	}
	return nil
}

// RemoveAddress is the equivalent of
// `ip -6 address del dev <iface> scope link <addr>`.
func (Netlink) RemoveAddress(iface string, addr netip.Prefix) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		if isGone(err) {
			return nil
		}
		return fmt.Errorf("link %s: %w", iface, err)
	}
	a := &netlink.Addr{IPNet: toIPNet(addr), Scope: int(netlink.SCOPE_LINK)}
	if err := netlink.AddrDel(link, a); err != nil && !isGone(err) {
		return err
	}
	return nil
}

// AddRoute is the equivalent of
// `ip -6 route add <dst> dev <iface> proto ra`.
func (Netlink) AddRoute(iface string, dst netip.Prefix) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("link %s: %w", iface, err)
	}
	if err := netlink.RouteAdd(raRoute(link, dst)); err != nil {
		return classify(err)
	}
	return nil
}

// RemoveRoute is the equivalent of
// `ip -6 route del <dst> dev <iface> proto ra`.
func (Netlink) RemoveRoute(iface string, dst netip.Prefix) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		if isGone(err) {
			return nil
		}
		return fmt.Errorf("link %s: %w", iface, err)
	}
	if err := netlink.RouteDel(raRoute(link, dst)); err != nil && !isGone(err) {
		return err
	}
	return nil
}

func raRoute(link netlink.Link, dst netip.Prefix) *netlink.Route {
	return &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       toIPNet(dst),
		Protocol:  netlink.RouteProtocol(unix.RTPROT_RA),
	}
}

func classify(err error) error {
	if errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("%w: %v", dlerr.ErrAlreadyExists, err)
	}
	return err
}

// isGone matches the errnos the kernel returns when the link, address
// or route being removed no longer exists.
func isGone(err error) bool {
	var lnf netlink.LinkNotFoundError
	if errors.As(err, &lnf) {
		return true
	}
	return errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.ESRCH) ||
		errors.Is(err, unix.ENOENT) ||
		errors.Is(err, unix.EADDRNOTAVAIL)
}
