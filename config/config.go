// Package config defines the runtime configuration for dptlink and
// the parsers for the --forward target and the --publish gateway.
package config

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"time"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/linklocal"
)

// Config holds every tuneable for a single run.
type Config struct {
	// ── USB mode switch ──────────────────────────────────────────────
	SwitchUSB   bool
	TTY         string
	Personality string
	Settle      time.Duration

	// ── Interface lifecycle ──────────────────────────────────────────
	Interface     string
	Assign        bool
	Route         bool
	InterfaceWait time.Duration

	// ── Forwarding ───────────────────────────────────────────────────
	ForwardSpec   string     // raw --forward value: IPv6 address or MAC
	Forward       bool       // set by Resolve when ForwardSpec is given
	Target        netip.Addr // resolved target address
	TargetDerived bool       // Target was derived from a MAC
	LocalPort     int
	TargetPort    int
	ListenHost    string
	Probe         bool
	ProbeTimeout  time.Duration

	// ── SSH publish ──────────────────────────────────────────────────
	PublishSpec    string // raw [user@]host[:port] from --publish
	PublishEnabled bool
	PublishUser    string
	PublishHost    string
	PublishPort    int
	PublishBind    string
	RemotePort     int // 0 = same as LocalPort
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string
	KeepAlive      time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		TTY:           DefaultTTY,
		Personality:   DefaultPersonality,
		Settle:        DefaultSettle,
		Interface:     DefaultInterface,
		InterfaceWait: DefaultInterfaceWait,
		LocalPort:     DefaultLocalPort,
		TargetPort:    DefaultTargetPort,
		ListenHost:    DefaultListenHost,
		ProbeTimeout:  DefaultProbeTimeout,
		PublishBind:   DefaultPublishBind,
		KeepAlive:     DefaultKeepAlive,
		Verbose:       1,
	}
}

// DoAssign reports whether the address should be installed.  Forwarding
// implies it.
func (c *Config) DoAssign() bool { return c.Assign || c.Forward }

// DoRoute reports whether the route should be installed.  Forwarding
// implies it.
func (c *Config) DoRoute() bool { return c.Route || c.Forward }

// HasAction reports whether any step was requested, before Resolve
// has run.  The environment alone may request one.
func (c *Config) HasAction() bool {
	return c.SwitchUSB || c.Assign || c.Route || c.ForwardSpec != ""
}

// RemoteAddr returns the bind address requested from the gateway.
func (c *Config) RemoteAddr() string {
	port := c.RemotePort
	if port == 0 {
		port = c.LocalPort
	}
	return fmt.Sprintf("%s:%d", c.PublishBind, port)
}

// Resolve parses the raw --forward and --publish values into their
// structured fields.
func (c *Config) Resolve() error {
	if c.ForwardSpec != "" {
		addr, derived, err := ParseTarget(c.ForwardSpec)
		if err != nil {
			return err
		}
		c.Forward = true
		c.Target = addr
		c.TargetDerived = derived
	}
	if c.PublishSpec != "" {
		user, host, port, err := ParseTunnelSpec(c.PublishSpec)
		if err != nil {
			return &dlerr.ConfigError{Field: "publish", Value: c.PublishSpec, Message: err.Error()}
		}
		c.PublishEnabled = true
		c.PublishUser = user
		c.PublishHost = host
		c.PublishPort = port
	}
	return nil
}

// ── Target parser ────────────────────────────────────────────────────

// ParseTarget accepts either an IPv6 address ("fe80::211:22ff:fe33:4455")
// or the device's MAC ("00:11:22:33:44:55"), in which case the target is
// the link-local address derived from it.
func ParseTarget(spec string) (addr netip.Addr, derived bool, err error) {
	if a, perr := netip.ParseAddr(spec); perr == nil {
		if !a.Is6() || a.Is4In6() {
			return netip.Addr{}, false, &dlerr.ConfigError{
				Field: "forward", Value: spec,
				Message: "target must be an IPv6 address",
				Hint:    "the device is reached over its fe80:: link-local address",
			}
		}
		return a, false, nil
	}

	ll, derr := linklocal.Derive(spec)
	if derr != nil {
		return netip.Addr{}, false, &dlerr.ConfigError{
			Field: "forward", Value: spec,
			Message: "not an IPv6 address or MAC address",
			Hint:    "use e.g. --forward fe80::211:22ff:fe33:4455 or --forward 00:11:22:33:44:55",
		}
	}
	return ll.Addr(), true, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host and port from a string such as
// "admin@gw.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid gateway %q, expected [user@]host[:port]", spec)
	}
	user, host, port = m[1], m[2], DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid gateway port %q", m[3])
		}
	}
	return user, host, port, nil
}
