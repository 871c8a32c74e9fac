package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every supported variable.
const EnvPrefix = "DPTLINK_"

// LoadFromEnv overlays DPTLINK_* variables onto cfg.  Only non-empty,
// well-formed values override.  Call it before registering flags so
// the flags see the overlaid values as their defaults.
func LoadFromEnv(cfg *Config) {
	// USB mode switch
	if v := env("USB"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SwitchUSB = b
		} else {
			cfg.SwitchUSB = true
			cfg.TTY = v
		}
	}
	if v := env("TTY"); v != "" {
		cfg.TTY = v
	}
	if v := env("PERSONALITY"); v != "" {
		cfg.Personality = v
	}
	if d, ok := envDuration("SETTLE"); ok {
		cfg.Settle = d
	}

	// Interface
	if v := env("INTERFACE"); v != "" {
		cfg.Interface = v
	}
	if d, ok := envDuration("INTERFACE_WAIT"); ok {
		cfg.InterfaceWait = d
	}
	if envBool("ASSIGN") {
		cfg.Assign = true
	}
	if envBool("ROUTE") {
		cfg.Route = true
	}

	// Forwarding
	if v := env("FORWARD"); v != "" {
		cfg.ForwardSpec = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if v := envInt("TARGET_PORT"); v > 0 {
		cfg.TargetPort = v
	}
	if v := env("LISTEN_HOST"); v != "" {
		cfg.ListenHost = v
	}
	if envBool("PROBE") {
		cfg.Probe = true
	}
	if d, ok := envDuration("PROBE_TIMEOUT"); ok {
		cfg.ProbeTimeout = d
	}

	// SSH publish
	if v := env("PUBLISH"); v != "" {
		cfg.PublishSpec = v
	}
	if v := envInt("REMOTE_PORT"); v > 0 {
		cfg.RemotePort = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("DRY_RUN") {
		cfg.DryRun = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func envInt(key string) int {
	n, err := strconv.Atoi(env(key))
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts Go durations ("750ms") or whole seconds ("5").
func envDuration(key string) (time.Duration, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
