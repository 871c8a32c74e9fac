package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/hoststack"
	"dptlink/internal/iface"
	"dptlink/internal/metrics"
	"dptlink/internal/relay"
	"dptlink/internal/retry"
	"dptlink/internal/serial"
	"dptlink/internal/transport"
	"dptlink/tunnel"
	"dptlink/util"
)

// ModeSwitcher sends the USB mode-switch command.
type ModeSwitcher interface {
	SwitchToEthernet(ctx context.Context, device string, p serial.Personality) error
}

// Orchestrator runs a [Plan] against real (or fake) collaborators.
type Orchestrator struct {
	Plan Plan

	Stack     hoststack.Stack
	Switcher  ModeSwitcher
	Dialer    transport.Dialer
	Publisher tunnel.Publisher // nil unless publishing
	Metrics   *metrics.Collector
	Logger    *util.Logger

	// Stdin is read for the Enter key in assign/route-only runs when
	// Interactive is set.
	Stdin       io.Reader
	Interactive bool

	// Stdout receives the final "Done." line (default os.Stdout).
	Stdout io.Writer
}

// Run executes the plan.  Teardown of whatever was installed happens
// exactly once on every return path, and "Done." is always printed.
// The returned error is nil for advisory failures and interrupts.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer fmt.Fprintln(o.stdout(), "Done.")

	p := &o.Plan
	if p.SwitchUSB {
		o.switchMode(ctx)
	}
	if !p.touchesInterface() || ctx.Err() != nil {
		return nil
	}

	mgr := iface.New(o.Stack, p.Interface, o.Logger)
	defer func() {
		if mgr.Assigned() || mgr.Routed() {
			o.Logger.Info("resetting %s", p.Interface)
		}
		mgr.Teardown()
	}()

	if p.SwitchUSB && p.InterfaceWait > 0 {
		if _, err := mgr.WaitForInterface(ctx, retry.Within(p.InterfaceWait)); err != nil {
			o.Logger.Warn("interface %s did not appear: %v", p.Interface, err)
		}
	}

	if p.Assign {
		if err := o.assign(mgr); err != nil {
			return err
		}
	}
	if p.Route {
		mgr.InstallRoute() //nolint:errcheck // advisory, already logged
	}

	if p.Forward {
		return o.forward(ctx)
	}
	waitForStop(ctx, o.Logger, o.Stdin, o.Interactive)
	return nil
}

func (o *Orchestrator) switchMode(ctx context.Context) {
	err := o.Switcher.SwitchToEthernet(ctx, o.Plan.TTY, o.Plan.Personality)
	switch {
	case err == nil:
	case errors.Is(err, dlerr.ErrDeviceNotFound):
		o.Logger.Warn("%s does not exist; ethernet over USB may already be active, or the tty is wrong (check ls /dev/tty*)", o.Plan.TTY)
	case errors.Is(err, context.Canceled):
	default:
		o.Logger.Warn("could not switch USB mode: %v", err)
	}
}

// assign derives and installs the address.  Only a malformed MAC is
// fatal; everything else is advisory.
func (o *Orchestrator) assign(mgr *iface.Manager) error {
	addr, err := mgr.DeriveAddress()
	if err != nil {
		if errors.Is(err, dlerr.ErrInvalidFormat) {
			return err
		}
		if dlerr.HostOp(err) == dlerr.OpQueryMAC {
			o.Logger.Warn("could not assign IP: could not read the MAC of %s: %v", mgr.Interface(), err)
			return nil
		}
		o.Logger.Warn("could not assign IP: %v", err)
		return nil
	}
	mgr.AssignAddress(addr) //nolint:errcheck // advisory, already logged
	return nil
}

func (o *Orchestrator) forward(ctx context.Context) error {
	p := &o.Plan
	cfg := p.relayConfig()
	cfg.Dialer = o.Dialer
	cfg.Metrics = o.Metrics
	cfg.Logger = o.Logger
	defer func() {
		if err := o.Dialer.Close(); err != nil {
			o.Logger.Debug("closing dialer: %v", err)
		}
	}()

	if p.TargetDerived {
		o.Logger.Info("target %s derived from the device MAC", p.Target)
	}
	if p.Probe {
		if err := relay.Probe(ctx, o.Dialer, cfg.TargetAddr(), p.ProbeTimeout); err != nil {
			o.Logger.Warn("%v", err)
		}
	}

	if o.Publisher != nil {
		if err := o.Publisher.Connect(ctx); err != nil {
			o.Logger.Error("forwarding failed: %v", err)
			return err
		}
		defer o.Publisher.Close()

		ln, err := o.Publisher.Listen("tcp", p.PublishAddr)
		if err != nil {
			o.Logger.Error("forwarding failed: %v", err)
			return err
		}
		cfg.Listener = ln
	}

	o.Logger.Info("starting to forward")
	sess, err := relay.Start(ctx, cfg)
	if err != nil {
		if cfg.Listener != nil {
			cfg.Listener.Close()
		}
		o.Logger.Error("forwarding failed: %v", err)
		return err
	}
	o.Logger.Info("press Ctrl+C to exit")

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
	sess.Stop()

	if err := sess.Err(); err != nil {
		o.Logger.Error("forwarding failed: %v", err)
		return err
	}
	return nil
}

func (o *Orchestrator) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}
