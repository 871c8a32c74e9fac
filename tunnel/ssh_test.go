package tunnel

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/retry"
	"dptlink/util"
)

// startGateway runs a minimal SSH server that accepts one remote
// forward and immediately pushes a single connection carrying greeting
// through it.
func startGateway(t *testing.T, greeting string) (host string, port int) {
	t.Helper()

	signer, err := ssh.ParsePrivateKey([]byte(testKey))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{NoClientAuth: true}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
		if err != nil {
			conn.Close()
			return
		}
		defer sconn.Close()
		go func() {
			for nc := range chans {
				nc.Reject(ssh.Prohibited, "no sessions") //nolint:errcheck
			}
		}()

		for req := range reqs {
			if req.Type != "tcpip-forward" {
				req.Reply(req.Type == "keepalive@openssh.com", nil) //nolint:errcheck
				continue
			}
			var fwd struct {
				Addr string
				Port uint32
			}
			ssh.Unmarshal(req.Payload, &fwd) //nolint:errcheck
			req.Reply(true, nil)             //nolint:errcheck

			go func() {
				// Client.Listen registers the forward after the reply.
				time.Sleep(50 * time.Millisecond)
				payload := ssh.Marshal(struct {
					Addr       string
					Port       uint32
					OriginAddr string
					OriginPort uint32
				}{fwd.Addr, fwd.Port, "192.0.2.7", 40000})
				ch, creqs, err := sconn.OpenChannel("forwarded-tcpip", payload)
				if err != nil {
					return
				}
				go ssh.DiscardRequests(creqs)
				io.WriteString(ch, greeting) //nolint:errcheck
				ch.CloseWrite()              //nolint:errcheck
				ch.Close()
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestSSHTunnel_RemoteForward(t *testing.T) {
	host, port := startGateway(t, "hello via gateway")

	tun := NewSSHTunnel(&SSHConfig{
		User:        "relay",
		Host:        host,
		Port:        port,
		KeyPath:     writeTestKey(t),
		ConnTimeout: 5 * time.Second,
		KeepAlive:   20 * time.Millisecond,
	}, util.NewLogger(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tun.Close()

	ln, err := tun.Listen("tcp", "0.0.0.0:8443")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello via gateway" {
		t.Errorf("got %q", got)
	}
	if !tun.IsAlive() {
		t.Error("tunnel should still be alive")
	}

	tun.Close()
	if tun.IsAlive() {
		t.Error("tunnel should be down after Close")
	}
}

func TestSSHTunnel_ListenNotConnected(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "gw.example"}, util.NewLogger(0))
	if _, err := tun.Listen("tcp", "0.0.0.0:8443"); !errors.Is(err, dlerr.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if tun.IsAlive() {
		t.Error("fresh tunnel should not be alive")
	}
	if err := tun.Close(); err != nil {
		t.Errorf("Close on unconnected tunnel: %v", err)
	}
}

func TestSSHTunnel_ConnectRefused(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tun := NewSSHTunnel(&SSHConfig{Host: "127.0.0.1", Port: port, KeyPath: writeTestKey(t)}, util.NewLogger(0))
	err := tun.Connect(context.Background())
	var ne *dlerr.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
}

func TestSSHTunnel_ConnectRetriesRefused(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tun := NewSSHTunnel(&SSHConfig{
		Host:      "127.0.0.1",
		Port:      port,
		KeyPath:   writeTestKey(t),
		DialRetry: &retry.Backoff{InitialDelay: 10 * time.Millisecond, MaxAttempts: 2},
	}, util.NewLogger(0))

	err := tun.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "gave up after 2 attempts") {
		t.Fatalf("err = %v, want gave up after 2 attempts", err)
	}
	var ne *dlerr.NetworkError
	if !errors.As(err, &ne) || !ne.Retryable {
		t.Errorf("err = %v, want retryable *NetworkError", err)
	}
}

func TestSSHConfig_Addr(t *testing.T) {
	cfg := &SSHConfig{Host: "gw.example"}
	NewSSHTunnel(cfg, util.NewLogger(0))
	if got := cfg.Addr(); got != "gw.example:22" {
		t.Errorf("Addr = %q", got)
	}
}

var _ Publisher = (*SSHTunnel)(nil)
