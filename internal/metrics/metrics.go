// Package metrics provides lock-free counters for a forwarding
// session: connections accepted, target dials that failed, and bytes
// relayed in each direction.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime statistics of one relay session.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	dialFailures      atomic.Int64
	bytesUp           atomic.Int64 // client → device
	bytesDown         atomic.Int64 // device → client
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connections ──────────────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// DialFailed records a connection that could not reach the target.
func (c *Collector) DialFailed(msg string) {
	if c == nil {
		return
	}
	c.dialFailures.Add(1)
	c.RecordError(msg)
}

// ActiveConnections returns the current number of relayed connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the number of accepted connections.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// DialFailures returns how many connections failed to reach the target.
func (c *Collector) DialFailures() int64 {
	if c == nil {
		return 0
	}
	return c.dialFailures.Load()
}

// ── Bytes ────────────────────────────────────────────────────────────

// Relayed records the bytes moved by one finished connection.
func (c *Collector) Relayed(up, down int64) {
	if c == nil {
		return
	}
	c.bytesUp.Add(up)
	c.bytesDown.Add(down)
}

// BytesUp returns the total bytes sent towards the device.
func (c *Collector) BytesUp() int64 {
	if c == nil {
		return 0
	}
	return c.bytesUp.Load()
}

// BytesDown returns the total bytes sent back to clients.
func (c *Collector) BytesDown() int64 {
	if c == nil {
		return 0
	}
	return c.bytesDown.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	DialFailures      int64  `json:"dial_failures"`
	BytesUp           int64  `json:"bytes_up"`
	BytesDown         int64  `json:"bytes_down"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		DialFailures:      c.dialFailures.Load(),
		BytesUp:           c.bytesUp.Load(),
		BytesDown:         c.bytesDown.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as a compact JSON string.
func (c *Collector) JSON() string {
	data, _ := json.Marshal(c.Snapshot())
	return string(data)
}
