// Package serial asks an attached device to switch its USB interface
// into an Ethernet personality by writing a fixed control sequence to
// its serial port.
package serial

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	dlerr "dptlink/internal/errors"
	"dptlink/util"
)

// DefaultSettle is how long the device is given to re-enumerate as a
// network interface after the mode switch.
const DefaultSettle = time.Second

// Personality selects the USB network function the device exposes.
type Personality int

const (
	// Auto picks RNDIS on Linux and Windows and CDC elsewhere.
	Auto Personality = iota
	RNDIS
	CDC
)

var (
	rndisPayload = [10]byte{0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x04}
	cdcPayload   = [10]byte{0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x01, 0x04}
)

func (p Personality) String() string {
	switch p {
	case RNDIS:
		return "rndis"
	case CDC:
		return "cdc"
	default:
		return "auto"
	}
}

// ParsePersonality accepts "auto", "rndis" or "cdc" (case-insensitive).
func ParsePersonality(s string) (Personality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "rndis":
		return RNDIS, nil
	case "cdc":
		return CDC, nil
	}
	return Auto, fmt.Errorf("unknown USB personality %q (want auto, rndis or cdc)", s)
}

// Resolve turns Auto into the concrete personality for goos.
func (p Personality) Resolve(goos string) Personality {
	if p != Auto {
		return p
	}
	if goos == "linux" || goos == "windows" {
		return RNDIS
	}
	return CDC
}

// Payload returns the control sequence for p, resolving Auto against
// the running platform.
func (p Personality) Payload() []byte {
	if p.Resolve(runtime.GOOS) == CDC {
		return cdcPayload[:]
	}
	return rndisPayload[:]
}

// Port is the minimal serial transport the switcher needs.
type Port interface {
	io.Writer
	io.Closer
}

// Opener opens the serial device at path.
type Opener func(path string) (Port, error)

// Switcher sends the mode-switch command.  The zero value is not
// usable; call [New].
type Switcher struct {
	Open   Opener
	Stat   func(path string) (os.FileInfo, error)
	Settle time.Duration
	Logger *util.Logger
}

// New returns a Switcher that talks to real serial devices.
func New(logger *util.Logger) *Switcher {
	return &Switcher{
		Open:   OpenPort,
		Stat:   os.Stat,
		Settle: DefaultSettle,
		Logger: logger,
	}
}

// SwitchToEthernet writes the control sequence for p to device and
// waits for the device to settle.  A missing device yields an error
// matching [dlerr.ErrDeviceNotFound]; callers may treat that as "already
// switched".  Nothing is retried.
func (s *Switcher) SwitchToEthernet(ctx context.Context, device string, p Personality) error {
	if _, err := s.Stat(device); err != nil {
		if os.IsNotExist(err) {
			return dlerr.WrapSerial("stat", device, dlerr.ErrDeviceNotFound)
		}
		return dlerr.WrapSerial("stat", device, err)
	}

	payload := p.Payload()
	s.Logger.Info("switching USB mode on %s (%s)", device, p.Resolve(runtime.GOOS))
	s.Logger.Info("now would be a good time to unlock the device")

	port, err := s.Open(device)
	if err != nil {
		return dlerr.WrapSerial("open", device, err)
	}

	n, err := port.Write(payload)
	if err == nil && n < len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		port.Close() //nolint:errcheck
		return dlerr.WrapSerial("write", device, err)
	}
	s.Logger.Debug("serial: wrote % x to %s", payload, device)

	if err := port.Close(); err != nil {
		return dlerr.WrapSerial("close", device, err)
	}

	if s.Settle > 0 {
		t := time.NewTimer(s.Settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	s.Logger.Info("switched USB mode to ethernet")
	return nil
}
