// Package linklocal derives IPv6 link-local addresses from 48-bit
// hardware addresses using the modified EUI-64 construction.
package linklocal

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/mdlayher/netx/eui64"

	dlerr "dptlink/internal/errors"
)

// PrefixLen is the prefix length of every derived address.
const PrefixLen = 64

// Prefix is the link-local prefix fe80::/64.
var Prefix = netip.MustParsePrefix("fe80::/64")

// Address is an IPv6 link-local address with its /64 prefix length.
// The zero value is invalid; use [Derive] or [FromHardwareAddr].
type Address struct {
	ip netip.Addr
}

// Derive parses mac as six colon-separated hexadecimal octets and
// returns the corresponding link-local address.
func Derive(mac string) (Address, error) {
	hw, err := ParseMAC(mac)
	if err != nil {
		return Address{}, err
	}
	return FromHardwareAddr(hw)
}

// FromHardwareAddr returns the link-local address for a 6-octet
// hardware address: the first octet has its universal/local bit
// flipped and ff:fe is inserted between the third and fourth octets.
func FromHardwareAddr(hw net.HardwareAddr) (Address, error) {
	if len(hw) != 6 {
		return Address{}, fmt.Errorf("%w: %d octets, want 6", dlerr.ErrInvalidFormat, len(hw))
	}
	ip, err := eui64.ParseMAC(net.IP(Prefix.Addr().AsSlice()), hw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", dlerr.ErrInvalidFormat, err)
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return Address{}, fmt.Errorf("%w: bad EUI-64 result %v", dlerr.ErrInvalidFormat, ip)
	}
	return Address{ip: addr}, nil
}

// ParseMAC accepts exactly six colon-separated octets of one or two
// hexadecimal digits each.  Unlike net.ParseMAC, dash and dot notation
// and 8- or 20-octet addresses are rejected.
func ParseMAC(s string) (net.HardwareAddr, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 6 {
		return nil, fmt.Errorf("%w: %q has %d octets, want 6", dlerr.ErrInvalidFormat, s, len(parts))
	}
	hw := make(net.HardwareAddr, 6)
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return nil, fmt.Errorf("%w: octet %d of %q", dlerr.ErrInvalidFormat, i+1, s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: octet %d of %q is not hex", dlerr.ErrInvalidFormat, i+1, s)
		}
		hw[i] = byte(v)
	}
	return hw, nil
}

// IsValid reports whether a holds a derived address.
func (a Address) IsValid() bool { return a.ip.IsValid() }

// Addr returns the bare IPv6 address.
func (a Address) Addr() netip.Addr { return a.ip }

// Prefix returns the address with its /64 prefix length.
func (a Address) Prefix() netip.Prefix { return netip.PrefixFrom(a.ip, PrefixLen) }

// IPNet returns the address in the form the netlink API expects.
func (a Address) IPNet() *net.IPNet {
	return &net.IPNet{IP: net.IP(a.ip.AsSlice()), Mask: net.CIDRMask(PrefixLen, 128)}
}

// Zoned returns the address scoped to iface, e.g. fe80::1%usb0.
func (a Address) Zoned(iface string) netip.Addr { return a.ip.WithZone(iface) }

// String renders the address as fe80::hhhh:hhhh:hhhh:hhhh/64 with the
// interface identifier written out as four zero-padded hextets.
func (a Address) String() string {
	if !a.ip.IsValid() {
		return "invalid"
	}
	b := a.ip.As16()
	return fmt.Sprintf("fe80::%02x%02x:%02x%02x:%02x%02x:%02x%02x/%d",
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15], PrefixLen)
}
