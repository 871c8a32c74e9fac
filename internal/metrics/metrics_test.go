package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalConnections())
	}
}

func TestCollector_DialFailed(t *testing.T) {
	c := New()
	c.DialFailed("dial [fe80::1%usb0]:8443: no route to host")

	if c.DialFailures() != 1 || c.ErrorCount() != 1 {
		t.Errorf("dial failures = %d, errors = %d, want 1/1", c.DialFailures(), c.ErrorCount())
	}
	if msg := c.Snapshot().LastErrorMessage; msg == "" {
		t.Error("expected last error message")
	}
}

func TestCollector_RelayedConcurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Relayed(10, 20)
		}()
	}
	wg.Wait()

	if c.BytesUp() != 500 || c.BytesDown() != 1000 {
		t.Errorf("up/down = %d/%d, want 500/1000", c.BytesUp(), c.BytesDown())
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.Relayed(42, 7)

	var snap Snapshot
	if err := json.Unmarshal([]byte(c.JSON()), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.ConnectionsActive != 1 || snap.BytesUp != 42 || snap.BytesDown != 7 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.DialFailed("x")
	c.Relayed(1, 1)
	c.RecordError("test")

	if c.ActiveConnections() != 0 || c.BytesUp() != 0 || c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}
}
