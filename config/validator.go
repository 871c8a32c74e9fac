package config

import (
	"fmt"
	"net/netip"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/serial"
)

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	if !c.SwitchUSB && !c.DoAssign() && !c.DoRoute() {
		return &dlerr.ConfigError{
			Field:   "forward",
			Message: "nothing to do",
			Hint:    "pass at least one of --usb, --assign, --route or --forward",
		}
	}

	if c.SwitchUSB && c.TTY == "" {
		return &dlerr.ConfigError{Field: "usb", Message: "serial device path is empty"}
	}
	if _, err := serial.ParsePersonality(c.Personality); err != nil {
		return &dlerr.ConfigError{
			Field: "personality", Value: c.Personality,
			Message: err.Error(), Hint: "use auto, rndis or cdc",
		}
	}

	if (c.DoAssign() || c.DoRoute()) && c.Interface == "" {
		return &dlerr.ConfigError{Field: "interface", Message: "interface name is required"}
	}
	if c.SwitchUSB && c.Settle < MinSettle {
		return &dlerr.ConfigError{
			Field:   "settle",
			Value:   c.Settle,
			Message: fmt.Sprintf("must be at least %v", MinSettle),
			Hint:    "the device needs time to re-enumerate after the switch",
		}
	}
	if c.InterfaceWait < 0 {
		return &dlerr.ConfigError{Field: "interface-wait", Value: c.InterfaceWait, Message: "must not be negative"}
	}

	if c.Forward {
		if err := c.validateForward(); err != nil {
			return err
		}
	}

	if c.PublishEnabled {
		if !c.Forward {
			return &dlerr.ConfigError{
				Field: "publish", Value: c.PublishSpec,
				Message: "publishing requires forwarding",
				Hint:    "add --forward <addr>",
			}
		}
		if c.RemotePort < 0 || c.RemotePort > 65535 {
			return &dlerr.ConfigError{Field: "remote-port", Value: c.RemotePort, Message: "must be 0-65535"}
		}
	}
	return nil
}

func (c *Config) validateForward() error {
	if !c.Target.IsValid() {
		return &dlerr.ConfigError{Field: "forward", Message: "target address is required"}
	}
	if c.LocalPort < 1 || c.LocalPort > 65535 {
		return &dlerr.ConfigError{Field: "port", Value: c.LocalPort, Message: "must be 1-65535"}
	}
	if c.TargetPort < 1 || c.TargetPort > 65535 {
		return &dlerr.ConfigError{Field: "target-port", Value: c.TargetPort, Message: "must be 1-65535"}
	}
	if a, err := netip.ParseAddr(c.ListenHost); err != nil || !a.Is4() {
		return &dlerr.ConfigError{
			Field: "listen-host", Value: c.ListenHost,
			Message: "must be an IPv4 address",
			Hint:    "the relay listens on tcp4, e.g. 0.0.0.0 or 127.0.0.1",
		}
	}
	if c.Probe && c.ProbeTimeout <= 0 {
		return &dlerr.ConfigError{Field: "probe-timeout", Value: c.ProbeTimeout, Message: "must be positive"}
	}
	return nil
}
