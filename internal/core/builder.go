package core

import (
	"fmt"
	"os"
	"time"

	"dptlink/config"
	"dptlink/internal/hoststack"
	"dptlink/internal/metrics"
	"dptlink/internal/retry"
	"dptlink/internal/serial"
	"dptlink/internal/transport"
	"dptlink/tunnel"
	"dptlink/util"
)

// Build turns a resolved, validated configuration into the Mode to run.
// It is the single dispatch point between the CLI and the core.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	plan, err := buildPlan(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DryRun {
		return &DryRun{Plan: plan, Logger: logger}, nil
	}

	sw := serial.New(logger)
	sw.Settle = cfg.Settle

	o := &Orchestrator{
		Plan:        plan,
		Stack:       hoststack.New(),
		Switcher:    sw,
		Dialer:      &transport.TCPDialer{Interface: cfg.Interface},
		Metrics:     metrics.New(),
		Logger:      logger,
		Stdin:       os.Stdin,
		Interactive: IsInteractive(os.Stdin),
	}
	if cfg.PublishEnabled {
		o.Publisher = tunnel.NewSSHTunnel(sshConfig(cfg), logger)
	}
	return o, nil
}

func buildPlan(cfg *config.Config) (Plan, error) {
	pers, err := serial.ParsePersonality(cfg.Personality)
	if err != nil {
		return Plan{}, fmt.Errorf("personality: %w", err)
	}

	p := Plan{
		SwitchUSB:     cfg.SwitchUSB,
		TTY:           cfg.TTY,
		Personality:   pers,
		Interface:     cfg.Interface,
		Assign:        cfg.DoAssign(),
		Route:         cfg.DoRoute(),
		InterfaceWait: cfg.InterfaceWait,
		Forward:       cfg.Forward,
		LocalPort:     cfg.LocalPort,
		ListenHost:    cfg.ListenHost,
		Target:        cfg.Target,
		TargetPort:    cfg.TargetPort,
		TargetDerived: cfg.TargetDerived,
		Probe:         cfg.Probe,
		ProbeTimeout:  cfg.ProbeTimeout,
	}
	if cfg.PublishEnabled {
		p.PublishAddr = cfg.RemoteAddr()
		p.PublishVia = util.FormatAddr(cfg.PublishHost, cfg.PublishPort)
	}
	return p, nil
}

func sshConfig(cfg *config.Config) *tunnel.SSHConfig {
	return &tunnel.SSHConfig{
		User:          cfg.PublishUser,
		Host:          cfg.PublishHost,
		Port:          cfg.PublishPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   config.DefaultConnTimeout,
		KeepAlive:     cfg.KeepAlive,
		DialRetry:     &retry.Backoff{InitialDelay: 500 * time.Millisecond, MaxAttempts: 3, Jitter: true},
	}
}
