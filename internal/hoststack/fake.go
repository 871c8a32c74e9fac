package hoststack

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	dlerr "dptlink/internal/errors"
)

// Call is one request recorded by [Fake].
type Call struct {
	Op     string // one of the errors.Op* constants
	Iface  string
	Prefix netip.Prefix
}

func (c Call) String() string {
	if !c.Prefix.IsValid() {
		return fmt.Sprintf("%s %s", c.Op, c.Iface)
	}
	return fmt.Sprintf("%s %s %s", c.Op, c.Iface, c.Prefix)
}

// Fake is an in-memory [Stack].  It keeps the installed addresses and
// routes so idempotency can be observed, records every call in order,
// and returns the error configured in Fail for an operation.
type Fake struct {
	mu        sync.Mutex
	MACs      map[string]net.HardwareAddr
	Fail      map[string]error // keyed by errors.Op* constant
	calls     []Call
	addresses map[string]map[netip.Prefix]bool
	routes    map[string]map[netip.Prefix]bool
}

// NewFake returns a Fake that knows one interface with the given MAC.
func NewFake(iface string, mac net.HardwareAddr) *Fake {
	return &Fake{
		MACs:      map[string]net.HardwareAddr{iface: mac},
		Fail:      map[string]error{},
		addresses: map[string]map[netip.Prefix]bool{},
		routes:    map[string]map[netip.Prefix]bool{},
	}
}

// SetFail makes op return err (nil clears it).
func (f *Fake) SetFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, op)
		return
	}
	f.Fail[op] = err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Mutations returns the recorded calls other than hardware-address
// queries.
func (f *Fake) Mutations() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op != dlerr.OpQueryMAC {
			out = append(out, c)
		}
	}
	return out
}

// HasAddress reports whether addr is currently installed on iface.
func (f *Fake) HasAddress(iface string, addr netip.Prefix) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addresses[iface][addr]
}

// HasRoute reports whether dst is currently routed via iface.
func (f *Fake) HasRoute(iface string, dst netip.Prefix) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routes[iface][dst]
}

func (f *Fake) HardwareAddr(iface string) (net.HardwareAddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: dlerr.OpQueryMAC, Iface: iface})
	if err := f.Fail[dlerr.OpQueryMAC]; err != nil {
		return nil, err
	}
	mac, ok := f.MACs[iface]
	if !ok {
		return nil, fmt.Errorf("link %s not found", iface)
	}
	return mac, nil
}

func (f *Fake) AddAddress(iface string, addr netip.Prefix) error {
	return f.add(dlerr.OpAddAddress, f.addresses, iface, addr)
}

func (f *Fake) RemoveAddress(iface string, addr netip.Prefix) error {
	return f.remove(dlerr.OpRemoveAddress, f.addresses, iface, addr)
}

func (f *Fake) AddRoute(iface string, dst netip.Prefix) error {
	return f.add(dlerr.OpAddRoute, f.routes, iface, dst)
}

func (f *Fake) RemoveRoute(iface string, dst netip.Prefix) error {
	return f.remove(dlerr.OpRemoveRoute, f.routes, iface, dst)
}

func (f *Fake) add(op string, table map[string]map[netip.Prefix]bool, iface string, p netip.Prefix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Iface: iface, Prefix: p})
	if err := f.Fail[op]; err != nil {
		return err
	}
	if _, ok := f.MACs[iface]; !ok {
		return fmt.Errorf("link %s not found", iface)
	}
	if table[iface] == nil {
		table[iface] = map[netip.Prefix]bool{}
	}
	if table[iface][p] {
		return fmt.Errorf("%s: %w", p, dlerr.ErrAlreadyExists)
	}
	table[iface][p] = true
	return nil
}

func (f *Fake) remove(op string, table map[string]map[netip.Prefix]bool, iface string, p netip.Prefix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Iface: iface, Prefix: p})
	if err := f.Fail[op]; err != nil {
		return err
	}
	delete(table[iface], p)
	return nil
}
