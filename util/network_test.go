package util

import (
	"net/netip"
	"testing"
)

func TestZonedAddr(t *testing.T) {
	tests := []struct {
		ip   string
		zone string
		port int
		want string
	}{
		{"fe80::ff:fe00:1", "usb0", 8443, "[fe80::ff:fe00:1%usb0]:8443"},
		{"fe80::1", "", 80, "[fe80::1]:80"},
		{"::1", "lo", 1, "[::1%lo]:1"},
	}
	for _, tt := range tests {
		got := ZonedAddr(netip.MustParseAddr(tt.ip), tt.zone, tt.port)
		if got != tt.want {
			t.Errorf("ZonedAddr(%s, %q, %d) = %q, want %q", tt.ip, tt.zone, tt.port, got, tt.want)
		}
	}
}

func TestFormatAddr(t *testing.T) {
	if got := FormatAddr("0.0.0.0", 8443); got != "0.0.0.0:8443" {
		t.Errorf("got %q, want %q", got, "0.0.0.0:8443")
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}
