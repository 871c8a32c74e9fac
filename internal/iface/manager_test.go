package iface

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/hoststack"
	"dptlink/internal/linklocal"
	"dptlink/internal/retry"
	"dptlink/util"
)

var testMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

func newTestManager(t *testing.T) (*Manager, *hoststack.Fake, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := util.NewLogger(2)
	logger.SetOutput(&buf)
	logger.SetTimestamps(false)

	fake := hoststack.NewFake("usb0", testMAC)
	return New(fake, "usb0", logger), fake, &buf
}

func TestManager_FullLifecycle(t *testing.T) {
	m, fake, _ := newTestManager(t)

	addr, err := m.DeriveAddress()
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != "fe80::0000:00ff:fe00:0001/64" {
		t.Fatalf("derived %v", addr)
	}
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}

	if err := m.AssignAddress(addr); err != nil {
		t.Fatal(err)
	}
	if m.State() != AddressAssigned {
		t.Errorf("state = %v, want address-assigned", m.State())
	}
	if err := m.InstallRoute(); err != nil {
		t.Fatal(err)
	}
	if m.State() != RouteInstalled {
		t.Errorf("state = %v, want route-installed", m.State())
	}
	if !fake.HasAddress("usb0", addr.Prefix()) || !fake.HasRoute("usb0", linklocal.Prefix) {
		t.Fatal("address and route should be installed")
	}

	m.Teardown()

	if m.State() != TornDown {
		t.Errorf("state = %v, want torn-down", m.State())
	}
	if fake.HasAddress("usb0", addr.Prefix()) || fake.HasRoute("usb0", linklocal.Prefix) {
		t.Error("teardown left state behind")
	}

	want := []string{
		"add-address usb0 fe80::ff:fe00:1/64",
		"add-route usb0 fe80::/64",
		"remove-route usb0 fe80::/64",
		"remove-address usb0 fe80::ff:fe00:1/64",
	}
	got := fake.Mutations()
	if len(got) != len(want) {
		t.Fatalf("mutations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("mutation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestManager_TeardownIdempotent(t *testing.T) {
	m, fake, _ := newTestManager(t)
	addr, _ := m.DeriveAddress()
	m.AssignAddress(addr) //nolint:errcheck
	m.InstallRoute()      //nolint:errcheck

	m.Teardown()
	n := len(fake.Mutations())
	m.Teardown()
	if len(fake.Mutations()) != n {
		t.Error("second Teardown should not touch the host stack")
	}

	if err := m.AssignAddress(addr); !errors.Is(err, dlerr.ErrTornDown) {
		t.Errorf("AssignAddress after teardown = %v, want ErrTornDown", err)
	}
	if err := m.InstallRoute(); !errors.Is(err, dlerr.ErrTornDown) {
		t.Errorf("InstallRoute after teardown = %v, want ErrTornDown", err)
	}
}

func TestTeardown_NothingInstalled(t *testing.T) {
	fake := hoststack.NewFake("usb0", testMAC)
	addr, _ := linklocal.FromHardwareAddr(testMAC)

	Teardown(fake, util.NewLogger(0), "usb0", addr, false, false)

	if n := len(fake.Calls()); n != 0 {
		t.Errorf("expected no host-stack calls, got %v", fake.Calls())
	}
}

func TestTeardown_TwiceWithFlags(t *testing.T) {
	fake := hoststack.NewFake("usb0", testMAC)
	addr, _ := linklocal.FromHardwareAddr(testMAC)
	fake.AddAddress("usb0", addr.Prefix()) //nolint:errcheck
	fake.AddRoute("usb0", linklocal.Prefix) //nolint:errcheck

	logger := util.NewLogger(0)
	Teardown(fake, logger, "usb0", addr, true, true)
	Teardown(fake, logger, "usb0", addr, true, true)

	if fake.HasAddress("usb0", addr.Prefix()) || fake.HasRoute("usb0", linklocal.Prefix) {
		t.Error("teardown left state behind")
	}
}

func TestTeardown_OnlyWhatWasInstalled(t *testing.T) {
	m, fake, _ := newTestManager(t)
	addr, _ := m.DeriveAddress()

	fake.SetFail(dlerr.OpAddAddress, errors.New("permission denied"))
	if err := m.AssignAddress(addr); err == nil {
		t.Fatal("expected assign failure")
	}
	if err := m.InstallRoute(); err != nil {
		t.Fatal(err)
	}

	m.Teardown()

	for _, c := range fake.Mutations() {
		if c.Op == dlerr.OpRemoveAddress {
			t.Errorf("address was never assigned but teardown removed it: %v", c)
		}
	}
	if fake.HasRoute("usb0", linklocal.Prefix) {
		t.Error("route should have been removed")
	}
}

func TestTeardown_SwallowsErrors(t *testing.T) {
	m, fake, buf := newTestManager(t)
	addr, _ := m.DeriveAddress()
	m.AssignAddress(addr) //nolint:errcheck
	m.InstallRoute()      //nolint:errcheck

	fake.SetFail(dlerr.OpRemoveRoute, errors.New("no such process"))
	fake.SetFail(dlerr.OpRemoveAddress, errors.New("cannot assign"))

	m.Teardown() // must not panic

	if m.State() != TornDown {
		t.Errorf("state = %v, want torn-down", m.State())
	}
	if strings.Contains(buf.String(), "[ERR]") || strings.Contains(buf.String(), "[WRN] teardown") {
		t.Errorf("teardown failures should not be surfaced as errors:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "(ignored)") {
		t.Errorf("teardown failures should be logged at verbose level:\n%s", buf.String())
	}
}

func TestManager_AdvisoryFailuresWarn(t *testing.T) {
	m, fake, buf := newTestManager(t)
	addr, _ := m.DeriveAddress()

	fake.SetFail(dlerr.OpAddAddress, errors.New("permission denied"))
	fake.SetFail(dlerr.OpAddRoute, errors.New("permission denied"))

	err := m.AssignAddress(addr)
	if dlerr.HostOp(err) != dlerr.OpAddAddress {
		t.Errorf("assign err = %v, want add-address HostStackError", err)
	}
	err = m.InstallRoute()
	if dlerr.HostOp(err) != dlerr.OpAddRoute {
		t.Errorf("route err = %v, want add-route HostStackError", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[WRN] could not assign IP") {
		t.Errorf("missing assign warning:\n%s", out)
	}
	if !strings.Contains(out, "[WRN] could not create route") {
		t.Errorf("missing route warning:\n%s", out)
	}
	if m.Assigned() || m.Routed() {
		t.Error("failed operations must not be recorded as installed")
	}
}

func TestManager_AlreadyAssignedIsNotOwned(t *testing.T) {
	m, fake, _ := newTestManager(t)
	addr, _ := m.DeriveAddress()
	fake.AddAddress("usb0", addr.Prefix()) //nolint:errcheck

	err := m.AssignAddress(addr)
	if !errors.Is(err, dlerr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	m.Teardown()
	if !fake.HasAddress("usb0", addr.Prefix()) {
		t.Error("teardown removed an address it did not install")
	}
}

func TestManager_QueryError(t *testing.T) {
	fake := hoststack.NewFake("usb1", testMAC)
	m := New(fake, "usb0", util.NewLogger(0))

	_, err := m.DeriveAddress()
	if dlerr.HostOp(err) != dlerr.OpQueryMAC {
		t.Fatalf("err = %v, want query-mac HostStackError", err)
	}
}

func TestManager_InvalidMAC(t *testing.T) {
	fake := hoststack.NewFake("usb0", net.HardwareAddr{1, 2, 3, 4, 5, 6, 7, 8})
	m := New(fake, "usb0", util.NewLogger(0))

	if _, err := m.DeriveAddress(); !errors.Is(err, dlerr.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestManager_WaitForInterface(t *testing.T) {
	fake := hoststack.NewFake("usb0", testMAC)
	fake.SetFail(dlerr.OpQueryMAC, errors.New("link not found"))
	m := New(fake, "usb0", util.NewLogger(0))

	go func() {
		time.Sleep(20 * time.Millisecond)
		fake.SetFail(dlerr.OpQueryMAC, nil)
	}()

	b := &retry.Backoff{InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond, MaxAttempts: 100}
	hw, err := m.WaitForInterface(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if hw.String() != testMAC.String() {
		t.Errorf("hw = %v, want %v", hw, testMAC)
	}
}

func TestManager_WaitForInterfaceGivesUp(t *testing.T) {
	fake := hoststack.NewFake("usb1", testMAC)
	m := New(fake, "usb0", util.NewLogger(0))

	b := &retry.Backoff{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3}
	if _, err := m.WaitForInterface(context.Background(), b); err == nil {
		t.Fatal("expected error")
	}
	if n := len(fake.Calls()); n != 3 {
		t.Errorf("queried %d times, want 3", n)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		Idle: "idle", AddressAssigned: "address-assigned",
		RouteInstalled: "route-installed", TornDown: "torn-down", State(9): "State(9)",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
