package core

import (
	"context"
	"fmt"
	"net/netip"
	"runtime"
	"time"

	"dptlink/internal/linklocal"
	"dptlink/internal/relay"
	"dptlink/internal/serial"
	"dptlink/util"
)

// Plan is the subset of steps one run performs.
type Plan struct {
	SwitchUSB   bool
	TTY         string
	Personality serial.Personality

	Interface     string
	Assign        bool
	Route         bool
	InterfaceWait time.Duration

	Forward    bool
	LocalPort  int
	ListenHost string
	TargetPort int

	Target netip.Addr
	// TargetDerived is set when Target was computed from a MAC.
	TargetDerived bool

	Probe        bool
	ProbeTimeout time.Duration

	// PublishAddr is the bind address requested from the SSH gateway;
	// empty when not publishing.
	PublishAddr string
	PublishVia  string
}

// touchesInterface reports whether the interface lifecycle runs.
func (p *Plan) touchesInterface() bool { return p.Assign || p.Route || p.Forward }

func (p *Plan) relayConfig() relay.Config {
	return relay.Config{
		LocalPort:  p.LocalPort,
		ListenHost: p.ListenHost,
		Interface:  p.Interface,
		Target:     p.Target,
		TargetPort: p.TargetPort,
	}
}

// Steps describes, in order, what a run of p does.
func (p *Plan) Steps() []string {
	var out []string
	if p.SwitchUSB {
		out = append(out, fmt.Sprintf("switch USB mode on %s (%s)", p.TTY, p.Personality.Resolve(runtime.GOOS)))
		if p.touchesInterface() && p.InterfaceWait > 0 {
			out = append(out, fmt.Sprintf("wait up to %v for interface %s", p.InterfaceWait, p.Interface))
		}
	}
	if p.Assign {
		out = append(out, fmt.Sprintf("assign link-local address derived from the MAC of %s (scope link)", p.Interface))
	}
	if p.Route {
		out = append(out, fmt.Sprintf("add route %s dev %s proto ra", linklocal.Prefix, p.Interface))
	}
	if p.Forward {
		rc := p.relayConfig()
		if p.TargetDerived {
			out = append(out, fmt.Sprintf("target %s derived from the device MAC", p.Target))
		}
		if p.Probe {
			out = append(out, fmt.Sprintf("probe %s", rc.TargetAddr()))
		}
		from := "tcp4 " + rc.ListenAddr()
		if p.PublishAddr != "" {
			from = fmt.Sprintf("ssh %s listening on %s", p.PublishVia, p.PublishAddr)
		}
		out = append(out, fmt.Sprintf("forward %s -> tcp6 %s until interrupted", from, rc.TargetAddr()))
	} else if p.Assign || p.Route {
		out = append(out, "wait for Enter or interrupt")
	}
	if p.Route {
		out = append(out, fmt.Sprintf("on exit: remove route %s dev %s", linklocal.Prefix, p.Interface))
	}
	if p.Assign {
		out = append(out, fmt.Sprintf("on exit: remove address from %s", p.Interface))
	}
	return out
}

// DryRun prints the plan instead of executing it.
type DryRun struct {
	Plan   Plan
	Logger *util.Logger
}

// Run logs every step of the plan.
func (d *DryRun) Run(_ context.Context) error {
	for i, s := range d.Plan.Steps() {
		d.Logger.Info("dry run %d: %s", i+1, s)
	}
	return nil
}
