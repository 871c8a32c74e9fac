package serial

import (
	goserial "go.bug.st/serial"
)

// LineMode is the line discipline the mode-switch command is sent
// with: 9600 baud, 8 data bits, no parity, one stop bit.
var LineMode = goserial.Mode{
	BaudRate: 9600,
	DataBits: 8,
	Parity:   goserial.NoParity,
	StopBits: goserial.OneStopBit,
}

// OpenPort opens path as a serial line in [LineMode].
func OpenPort(path string) (Port, error) {
	mode := LineMode
	p, err := goserial.Open(path, &mode)
	if err != nil {
		return nil, err
	}
	return drainingPort{p}, nil
}

// drainingPort waits for the written bytes to leave the UART before
// closing, so the command is not cut short.
type drainingPort struct {
	goserial.Port
}

func (p drainingPort) Close() error {
	if err := p.Port.Drain(); err != nil {
		p.Port.Close() //nolint:errcheck
		return err
	}
	return p.Port.Close()
}
