package tunnel

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/retry"
	"dptlink/util"
)

// SSHConfig holds everything needed to reach an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive@openssh.com requests.
	// Zero disables them.
	KeepAlive time.Duration

	// DialRetry schedules redials of the gateway after transient
	// failures.  Nil means a single attempt.
	DialRetry *retry.Backoff
}

// Addr returns host:port of the gateway.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements [Publisher] with golang.org/x/crypto/ssh.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
	done   chan struct{}
}

// NewSSHTunnel returns a tunnel ready to [SSHTunnel.Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger.With("ssh")}
}

// Connect dials the gateway and completes the handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	cfg := t.config
	auth, err := BuildAuthMethods(cfg)
	if err != nil {
		return dlerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	hk, err := hostKeyCallback(cfg)
	if err != nil {
		return dlerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	addr := cfg.Addr()
	t.logger.Debug("dialing %s as %s", addr, cfg.User)

	conn, err := t.dial(ctx, addr)
	if err != nil {
		return err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hk,
		Timeout:         cfg.ConnTimeout,
	})
	if err != nil {
		conn.Close()
		return dlerr.WrapSSH("handshake", cfg.Host, cfg.Port, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	done := make(chan struct{})
	t.mu.Lock()
	t.client = client
	t.alive = true
	t.done = done
	t.mu.Unlock()

	go t.monitor(client, done)
	if cfg.KeepAlive > 0 {
		go t.keepalive(client, done)
	}
	return nil
}

// dial connects to the gateway, redialling on retryable errors when
// DialRetry is set.
func (t *SSHTunnel) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: t.config.ConnTimeout}
	b := t.config.DialRetry
	if b == nil {
		b = &retry.Backoff{MaxAttempts: 1}
	}

	var conn net.Conn
	err := b.Do(ctx, func(attempt int) error {
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			werr := dlerr.Wrap("dial", addr, err)
			if !dlerr.IsRetryable(werr) {
				return retry.Permanent(werr)
			}
			t.logger.Verbose("dial %s failed (attempt %d): %v", addr, attempt, err)
			return werr
		}
		conn = c
		return nil
	})
	return conn, err
}

// Listen requests a remote forward for addr (e.g. "0.0.0.0:8443").
func (t *SSHTunnel) Listen(network, addr string) (net.Listener, error) {
	t.mu.RLock()
	client, alive := t.client, t.alive
	t.mu.RUnlock()
	if !alive || client == nil {
		return nil, dlerr.ErrNotConnected
	}

	ln, err := client.Listen(network, addr)
	if err != nil {
		return nil, dlerr.WrapSSH("remote-forward "+addr, t.config.Host, t.config.Port, err)
	}
	t.logger.Info("published on %s:%s", t.config.Host, portOf(ln.Addr()))
	return ln, nil
}

// Close shuts down the SSH connection.  Remote listeners die with it.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// IsAlive reports whether the session is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

func (t *SSHTunnel) monitor(client *ssh.Client, done chan struct{}) {
	err := client.Wait()
	close(done)

	t.mu.Lock()
	if t.client == client || t.client == nil {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("session closed: %v", err)
	} else {
		t.logger.Debug("session closed")
	}
}

// keepalive closes the client when the gateway stops answering, which
// in turn fails Accept on every remote listener.
func (t *SSHTunnel) keepalive(client *ssh.Client, done <-chan struct{}) {
	ticker := time.NewTicker(t.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.logger.Warn("keepalive failed: %v", err)
				client.Close()
				return
			}
			t.logger.Debug("keepalive OK")
		}
	}
}

func portOf(a net.Addr) string {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return strconv.Itoa(tcp.Port)
	}
	_, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	return port
}
