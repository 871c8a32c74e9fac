// Package errors provides domain-specific error types for dptlink.
//
// These types carry structured context (operation, device, interface,
// address) that lets the orchestrator tell fatal failures apart from
// advisory ones and produce distinguishable warnings.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrInvalidFormat is returned when a MAC address does not decompose
	// into exactly six colon-separated hexadecimal octets.
	ErrInvalidFormat = errors.New("invalid MAC address format")

	// ErrDeviceNotFound means the serial device path does not exist.
	ErrDeviceNotFound = errors.New("serial device not found")

	// ErrAlreadyExists is reported by the host stack when an address or
	// route is already present.
	ErrAlreadyExists = errors.New("already exists")

	// ErrRouteUnreachable means the relay target could not be reached.
	ErrRouteUnreachable = errors.New("target unreachable")

	// ErrTornDown is returned for mutations requested after teardown.
	ErrTornDown = errors.New("interface lifecycle already torn down")

	// ErrUnsupported is returned by host-stack operations that have no
	// implementation on the current platform.
	ErrUnsupported = errors.New("not supported on this platform")

	ErrNotConnected = errors.New("not connected")
)

// ── Host-stack operations ────────────────────────────────────────────

// Operation names used in HostStackError.Op.
const (
	OpQueryMAC      = "query-mac"
	OpAddAddress    = "add-address"
	OpRemoveAddress = "remove-address"
	OpAddRoute      = "add-route"
	OpRemoveRoute   = "remove-route"
)

// ── Structured error types ───────────────────────────────────────────

// HostStackError represents a failed request to the host network stack.
// Op is one of the Op* constants; an Op of OpAddAddress is what the
// lifecycle manager reports as an assign error, OpAddRoute as a route
// error and OpQueryMAC as a query error.
type HostStackError struct {
	Op        string
	Interface string
	Target    string // address or prefix involved (empty for query-mac)
	Err       error
}

func (e *HostStackError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Interface, e.Err)
	}
	return fmt.Sprintf("%s %s dev %s: %v", e.Op, e.Target, e.Interface, e.Err)
}

func (e *HostStackError) Unwrap() error { return e.Err }

// SerialError represents a failure talking to the serial transport.
type SerialError struct {
	Op     string // "stat", "open", "write", "close"
	Device string
	Err    error
}

func (e *SerialError) Error() string {
	return fmt.Sprintf("serial %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *SerialError) Unwrap() error { return e.Err }

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "listen", "accept", "dial", "copy"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the failure looks transient
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "listen"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapHost creates a HostStackError.
func WrapHost(op, iface, target string, err error) *HostStackError {
	return &HostStackError{Op: op, Interface: iface, Target: target, Err: err}
}

// WrapSerial creates a SerialError.
func WrapSerial(op, device string, err error) *SerialError {
	return &SerialError{Op: op, Device: device, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsBindError reports whether err came from binding a listener.
func IsBindError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Op == "listen"
}

// HostOp returns the host-stack operation that produced err, or ""
// when err is not a HostStackError.
func HostOp(err error) string {
	var he *HostStackError
	if errors.As(err, &he) {
		return he.Op
	}
	return ""
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	return false
}
