// Package cmd wires up the CLI flags and dispatches to the core.
package cmd

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"dptlink/config"
	"dptlink/internal/core"
	"dptlink/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X dptlink/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the requested steps.
func Execute(ctx context.Context, args []string) error {
	cfg := config.New()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("dptlink", flag.ContinueOnError)

	// ── ethernet over USB ────────────────────────────────────────
	var usb string
	fs.StringVar(&usb, "usb", "", "Switch the device to ethernet over USB through serial `TTY`")
	fs.Lookup("usb").NoOptDefVal = cfg.TTY
	fs.StringVar(&cfg.Personality, "personality", cfg.Personality, "USB network function: auto, rndis or cdc")
	fs.DurationVar(&cfg.Settle, "settle", cfg.Settle, "Time the device gets to re-enumerate after switching (at least 1s)")
	fs.DurationVar(&cfg.InterfaceWait, "interface-wait", cfg.InterfaceWait, "How long to wait for the interface after --usb")

	// ── forwarding ───────────────────────────────────────────────
	fs.StringVar(&cfg.ForwardSpec, "forward", cfg.ForwardSpec, "Forward to the device at IPv6 `ADDR` (or the address derived from its MAC)")
	fs.StringVar(&cfg.Interface, "interface", cfg.Interface, "Network interface name")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local IPv4 port to listen on")
	fs.IntVar(&cfg.TargetPort, "target-port", cfg.TargetPort, "Port on the device")
	fs.StringVar(&cfg.ListenHost, "listen-host", cfg.ListenHost, "Local IPv4 address to listen on")
	fs.BoolVarP(&cfg.Assign, "assign", "a", cfg.Assign, "Assign the IPv6 link-local address (implied by --forward)")
	fs.BoolVarP(&cfg.Route, "route", "r", cfg.Route, "Create the fe80::/64 route (implied by --forward)")
	fs.BoolVar(&cfg.Probe, "probe", cfg.Probe, "Dial the device once before forwarding")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Timeout for --probe")

	// ── SSH publish ──────────────────────────────────────────────
	fs.StringVar(&cfg.PublishSpec, "publish", cfg.PublishSpec, "Also publish the relay on SSH gateway [user@]host[:port]")
	fs.IntVar(&cfg.RemotePort, "remote-port", cfg.RemotePort, "Port to open on the gateway (default: --port)")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var extraVerbose int
	fs.CountVarP(&extraVerbose, "verbose", "v", "Increase verbosity (repeatable)")
	var quiet bool
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Print what would be done and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || (len(args) == 0 && !cfg.HasAction()) {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("dptlink %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	if fs.Changed("usb") {
		cfg.SwitchUSB = true
		cfg.TTY = usb
	}
	cfg.Verbose += extraVerbose
	if quiet {
		cfg.Verbose = 0
	}

	// ── resolve & validate ───────────────────────────────────────
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build & run ──────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `dptlink %s

Bring up an IPv6 link-local link to a device over USB and forward a
local IPv4 port to it.

Usage:
  dptlink --usb[=TTY]                         Switch the device to ethernet over USB
  dptlink --assign --route                    Configure usb0 until Enter is pressed
  dptlink --forward ADDR|MAC [-p PORT]        Configure usb0 and forward until Ctrl+C

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  dptlink --usb --forward fe80::211:22ff:fe33:4455
  dptlink --usb=/dev/ttyACM1 --forward 00:11:22:33:44:55 -p 9443
  dptlink --forward fe80::211:22ff:fe33:4455 --publish relay@gw.example.com

Environment:
  Every flag except -q, --version and --help has a DPTLINK_* counterpart
  named after it, e.g. DPTLINK_INTERFACE=usb1 or DPTLINK_DRY_RUN=1.
  Flags take precedence over the environment.
`)
}
