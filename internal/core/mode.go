// Package core is the orchestration layer.  It composes the serial
// mode switch, the interface lifecycle and the forwarding relay into
// one run, and provides a builder that turns a Config into that run.
//
// Layers (bottom → top):
//
//	linklocal, serial, hoststack  →  iface, relay  →  core  →  cmd (CLI)
//
// Whatever the exit path (normal completion, error or interrupt), a run
// converges on a single interface teardown.
package core

import "context"

// Mode is a complete operation of dptlink.  The real run is
// [*Orchestrator]; [*DryRun] only prints the plan.
type Mode interface {
	Run(ctx context.Context) error
}
