package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so CLI flags, environment loading and
// tests agree on them.

const (
	// DefaultTTY is the serial device the USB gadget exposes before it
	// is switched into Ethernet mode.
	DefaultTTY = "/dev/ttyACM0"

	// DefaultInterface is the network interface that appears after the
	// mode switch.
	DefaultInterface = "usb0"

	// DefaultLocalPort is the IPv4 port the relay listens on.
	DefaultLocalPort = 8443

	// DefaultTargetPort is the device's HTTPS API port.
	DefaultTargetPort = 8443

	// DefaultListenHost binds the relay on every IPv4 address.
	DefaultListenHost = "0.0.0.0"

	// DefaultPersonality lets the platform pick RNDIS or CDC.
	DefaultPersonality = "auto"

	// DefaultSettle is how long the device gets to re-enumerate after
	// the mode-switch command.
	DefaultSettle = time.Second

	// MinSettle is the shortest settle interval --settle accepts.
	MinSettle = time.Second

	// DefaultInterfaceWait bounds polling for the interface to appear.
	DefaultInterfaceWait = 5 * time.Second

	// DefaultProbeTimeout bounds the optional pre-flight dial.
	DefaultProbeTimeout = 3 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultKeepAlive is the SSH keepalive interval for --publish.
	DefaultKeepAlive = 30 * time.Second

	// DefaultPublishBind is the address the gateway listens on.
	DefaultPublishBind = "0.0.0.0"
)
