// Package iface owns the address/route lifecycle of one network
// interface: it derives the link-local address from the interface's
// MAC, installs the address and the fe80::/64 route through a
// [hoststack.Stack], and removes exactly what it installed on teardown.
package iface

import (
	"context"
	"fmt"
	"net"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/hoststack"
	"dptlink/internal/linklocal"
	"dptlink/internal/retry"
	"dptlink/util"
)

// State is the position of the lifecycle state machine.
type State int

const (
	Idle State = iota
	AddressAssigned
	RouteInstalled
	TornDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AddressAssigned:
		return "address-assigned"
	case RouteInstalled:
		return "route-installed"
	case TornDown:
		return "torn-down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Manager runs the lifecycle for a single interface.  It is driven by
// one goroutine (the orchestrator) and is not safe for concurrent use.
type Manager struct {
	stack  hoststack.Stack
	name   string
	logger *util.Logger

	addr     linklocal.Address
	assigned bool
	routed   bool
	state    State
}

// New returns a Manager for the named interface.
func New(stack hoststack.Stack, name string, logger *util.Logger) *Manager {
	return &Manager{stack: stack, name: name, logger: logger}
}

// Interface returns the interface name.
func (m *Manager) Interface() string { return m.name }

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.state }

// Assigned reports whether this manager installed the address.
func (m *Manager) Assigned() bool { return m.assigned }

// Routed reports whether this manager installed the route.
func (m *Manager) Routed() bool { return m.routed }

// Address returns the last derived address (zero if none).
func (m *Manager) Address() linklocal.Address { return m.addr }

// MAC reads the interface's hardware address.
func (m *Manager) MAC() (net.HardwareAddr, error) {
	hw, err := m.stack.HardwareAddr(m.name)
	if err != nil {
		return nil, dlerr.WrapHost(dlerr.OpQueryMAC, m.name, "", err)
	}
	return hw, nil
}

// WaitForInterface polls MAC until the interface shows up or b gives
// up.  A device that was just switched into Ethernet mode takes a
// moment to re-enumerate.
func (m *Manager) WaitForInterface(ctx context.Context, b *retry.Backoff) (net.HardwareAddr, error) {
	var hw net.HardwareAddr
	err := b.Do(ctx, func(attempt int) error {
		var err error
		hw, err = m.MAC()
		if err != nil {
			m.logger.Debug("interface %s not ready (attempt %d): %v", m.name, attempt, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return hw, nil
}

// DeriveAddress reads the interface MAC and derives its link-local
// address.  A malformed MAC yields errors.ErrInvalidFormat.
func (m *Manager) DeriveAddress() (linklocal.Address, error) {
	if m.addr.IsValid() {
		return m.addr, nil
	}
	hw, err := m.MAC()
	if err != nil {
		return linklocal.Address{}, err
	}
	m.logger.Info("interface %s MAC is %s", m.name, hw)

	addr, err := linklocal.FromHardwareAddr(hw)
	if err != nil {
		return linklocal.Address{}, err
	}
	m.addr = addr
	return addr, nil
}

// AssignAddress installs addr with link scope.  Failure is logged as a
// warning and returned; the state machine stays where it was.
func (m *Manager) AssignAddress(addr linklocal.Address) error {
	if m.state == TornDown {
		return dlerr.ErrTornDown
	}
	m.addr = addr

	m.logger.Info("assigning IPv6 address %s to %s", addr, m.name)
	if err := m.stack.AddAddress(m.name, addr.Prefix()); err != nil {
		err = dlerr.WrapHost(dlerr.OpAddAddress, m.name, addr.Prefix().String(), err)
		m.logger.Warn("could not assign IP: %v", err)
		return err
	}

	m.assigned = true
	if m.state < AddressAssigned {
		m.state = AddressAssigned
	}
	m.logger.Info("assigned IPv6 address")
	return nil
}

// InstallRoute adds the fe80::/64 route via the interface.  Failure is
// logged as a warning and returned.
func (m *Manager) InstallRoute() error {
	if m.state == TornDown {
		return dlerr.ErrTornDown
	}

	m.logger.Info("creating route %s dev %s", linklocal.Prefix, m.name)
	if err := m.stack.AddRoute(m.name, linklocal.Prefix); err != nil {
		err = dlerr.WrapHost(dlerr.OpAddRoute, m.name, linklocal.Prefix.String(), err)
		m.logger.Warn("could not create route: %v", err)
		return err
	}

	m.routed = true
	m.state = RouteInstalled
	m.logger.Info("created route")
	return nil
}

// Teardown removes whatever this manager installed.  It never fails
// and may be called any number of times.
func (m *Manager) Teardown() {
	if m.state == TornDown {
		return
	}
	Teardown(m.stack, m.logger, m.name, m.addr, m.assigned, m.routed)
	m.assigned = false
	m.routed = false
	m.state = TornDown
}

// Teardown removes the route if didRoute and the address if didAssign,
// in that order.  Removal failures are logged and swallowed.
func Teardown(stack hoststack.Stack, logger *util.Logger, name string, addr linklocal.Address, didAssign, didRoute bool) {
	if didRoute {
		attempt(logger, "remove route", func() error {
			return stack.RemoveRoute(name, linklocal.Prefix)
		})
	}
	if didAssign && addr.IsValid() {
		attempt(logger, "remove address", func() error {
			return stack.RemoveAddress(name, addr.Prefix())
		})
	}
}

// attempt runs fn and logs its failure without propagating it.
func attempt(logger *util.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Verbose("teardown: %s: %v (ignored)", what, err)
	}
}
