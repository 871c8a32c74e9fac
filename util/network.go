package util

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ZonedAddr returns "[ip%zone]:port", the form net.Dial needs to reach
// a link-local address through a specific interface.  An empty zone
// leaves the address unscoped.
func ZonedAddr(ip netip.Addr, zone string, port int) string {
	return netip.AddrPortFrom(ip.WithZone(zone), uint16(port)).String()
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
