package hoststack

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	dlerr "dptlink/internal/errors"
)

var _ Stack = (*Fake)(nil)

func TestFake_AddRemove(t *testing.T) {
	mac := net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	f := NewFake("usb0", mac)
	addr := netip.MustParsePrefix("fe80::ff:fe00:1/64")
	dst := netip.MustParsePrefix("fe80::/64")

	got, err := f.HardwareAddr("usb0")
	if err != nil || got.String() != mac.String() {
		t.Fatalf("HardwareAddr = %v, %v", got, err)
	}

	if err := f.AddAddress("usb0", addr); err != nil {
		t.Fatal(err)
	}
	if err := f.AddAddress("usb0", addr); !errors.Is(err, dlerr.ErrAlreadyExists) {
		t.Errorf("second AddAddress err = %v, want ErrAlreadyExists", err)
	}
	if err := f.AddRoute("usb0", dst); err != nil {
		t.Fatal(err)
	}
	if !f.HasAddress("usb0", addr) || !f.HasRoute("usb0", dst) {
		t.Fatal("address and route should be installed")
	}

	for i := 0; i < 2; i++ {
		if err := f.RemoveRoute("usb0", dst); err != nil {
			t.Errorf("RemoveRoute #%d: %v", i+1, err)
		}
		if err := f.RemoveAddress("usb0", addr); err != nil {
			t.Errorf("RemoveAddress #%d: %v", i+1, err)
		}
	}
	if f.HasAddress("usb0", addr) || f.HasRoute("usb0", dst) {
		t.Error("address and route should be removed")
	}

	if n := len(f.Mutations()); n != 7 {
		t.Errorf("recorded %d mutations, want 7: %v", n, f.Mutations())
	}
}

func TestFake_Fail(t *testing.T) {
	f := NewFake("usb0", net.HardwareAddr{0, 1, 2, 3, 4, 5})
	boom := errors.New("operation not permitted")
	f.SetFail(dlerr.OpAddRoute, boom)

	if err := f.AddRoute("usb0", netip.MustParsePrefix("fe80::/64")); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}

	f.SetFail(dlerr.OpAddRoute, nil)
	if err := f.AddRoute("usb0", netip.MustParsePrefix("fe80::/64")); err != nil {
		t.Errorf("cleared failure still returned %v", err)
	}

	if _, err := f.HardwareAddr("eth9"); err == nil {
		t.Error("unknown interface should fail")
	}
}

func TestToIPNet(t *testing.T) {
	n := toIPNet(netip.MustParsePrefix("fe80::/64"))
	if n.String() != "fe80::/64" {
		t.Errorf("toIPNet = %v", n)
	}
}
