// Package relay forwards TCP connections accepted on a local IPv4 port
// to a fixed port on an IPv6 link-local address.  Each accepted
// connection gets its own outbound dial and a pair of copy goroutines;
// a failure on one connection never affects the listener or the others.
package relay

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"

	dlerr "dptlink/internal/errors"
	"dptlink/internal/metrics"
	"dptlink/internal/transport"
	"dptlink/util"
)

// DefaultListenHost accepts connections on every IPv4 address.
const DefaultListenHost = "0.0.0.0"

// errBuffer bounds Session.Errors; further errors are only logged.
const errBuffer = 32

// Config describes one forwarding session.
type Config struct {
	LocalPort  int    // 0 picks an ephemeral port
	ListenHost string // defaults to DefaultListenHost
	Interface  string // zone for the link-local target
	Target     netip.Addr
	TargetPort int

	// Listener replaces the local tcp4 bind when set.  The session
	// takes ownership and closes it on Stop.
	Listener net.Listener

	// Dialer defaults to a *transport.TCPDialer scoped to Interface.
	Dialer transport.Dialer

	Metrics *metrics.Collector
	Logger  *util.Logger
}

// ListenAddr returns host:port of the local bind.
func (c *Config) ListenAddr() string {
	host := c.ListenHost
	if host == "" {
		host = DefaultListenHost
	}
	return util.FormatAddr(host, c.LocalPort)
}

// TargetAddr returns "[addr%iface]:port".
func (c *Config) TargetAddr() string {
	zone := c.Interface
	if zone == "" {
		zone = c.Target.Zone()
	}
	return util.ZonedAddr(c.Target, zone, c.TargetPort)
}

func (c *Config) validate() error {
	if !c.Target.IsValid() || !c.Target.Is6() {
		return &dlerr.ConfigError{Field: "forward", Value: c.Target, Message: "target must be an IPv6 address"}
	}
	if c.Target.IsLinkLocalUnicast() && c.Interface == "" && c.Target.Zone() == "" {
		return &dlerr.ConfigError{Field: "interface", Message: "link-local target needs an interface"}
	}
	if c.TargetPort < 1 || c.TargetPort > 65535 {
		return &dlerr.ConfigError{Field: "target-port", Value: c.TargetPort, Message: "must be 1-65535"}
	}
	if c.Listener == nil && (c.LocalPort < 0 || c.LocalPort > 65535) {
		return &dlerr.ConfigError{Field: "port", Value: c.LocalPort, Message: "must be 0-65535"}
	}
	return nil
}

// ConnError is a failure confined to one relayed connection.
type ConnError struct {
	Client string
	Target string
	Op     string // "dial" or "copy"
	Err    error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("relay %s -> %s: %s: %v", e.Client, e.Target, e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// Session is a running relay.
type Session struct {
	cfg     Config
	target  string
	ln      net.Listener
	dialer  transport.Dialer
	logger  *util.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	unhook func() bool

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	err     error

	wg       sync.WaitGroup
	errs     chan error
	done     chan struct{}
	stopOnce sync.Once
}

// Start binds the listener and begins relaying.  A bind failure is
// returned as a *errors.NetworkError with Op "listen".  Cancelling ctx
// stops the session the same way Stop does, without waiting.
func Start(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = util.NewLogger(0)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &transport.TCPDialer{Interface: cfg.Interface}
	}

	ln := cfg.Listener
	if ln == nil {
		addr := cfg.ListenAddr()
		var err error
		ln, err = net.Listen("tcp4", addr)
		if err != nil {
			return nil, dlerr.Wrap("listen", addr, err)
		}
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		target:  cfg.TargetAddr(),
		ln:      ln,
		dialer:  cfg.Dialer,
		logger:  cfg.Logger.With("relay"),
		metrics: cfg.Metrics,
		ctx:     sctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
		errs:    make(chan error, errBuffer),
		done:    make(chan struct{}),
	}
	s.unhook = context.AfterFunc(ctx, s.shutdown)

	s.logger.Info("forwarding %s -> %s", ln.Addr(), s.target)

	s.wg.Add(1)
	go s.acceptLoop()
	go func() {
		s.wg.Wait()
		close(s.errs)
		close(s.done)
	}()
	return s, nil
}

// Addr returns the listener's address.
func (s *Session) Addr() net.Addr { return s.ln.Addr() }

// Target returns the dial address of the device.
func (s *Session) Target() string { return s.target }

// Errors delivers per-connection and listener failures.  It is closed
// once the session has fully stopped.  Reading it is optional.
func (s *Session) Errors() <-chan error { return s.errs }

// Done is closed after the listener and every connection have exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the listener failure that ended the session, or nil if
// it was stopped.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop closes the listener and every active connection and waits for
// all relay goroutines to exit.  It is safe to call more than once.
func (s *Session) Stop() {
	s.shutdown()
	<-s.done
	s.stopOnce.Do(func() {
		s.unhook()
		s.logger.Verbose("stopped: %s", s.metrics.JSON())
	})
}

// Wait blocks until the session ends by itself or through Stop.
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Session) shutdown() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
}

func (s *Session) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.closing
			if !stopping {
				s.err = dlerr.Wrap("accept", s.ln.Addr().String(), err)
			}
			s.mu.Unlock()

			if !stopping {
				s.logger.Error("listener failed: %v", err)
				s.publish(s.Err())
				s.shutdown()
			}
			return
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Session) serve(client net.Conn) {
	defer s.wg.Done()
	defer s.untrack(client)

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	from := client.RemoteAddr().String()
	s.logger.Verbose("connection from %s", from)

	target, err := s.dialer.Dial(s.ctx, "tcp6", s.target)
	if err != nil {
		client.Close()
		cerr := &ConnError{Client: from, Target: s.target, Op: "dial", Err: err}
		s.metrics.DialFailed(cerr.Error())
		s.logger.Warn("%v", cerr)
		s.publish(cerr)
		return
	}
	if !s.track(target) {
		target.Close()
		client.Close()
		return
	}
	defer s.untrack(target)

	up, down, err := util.Pipe(s.ctx, client, target)
	s.metrics.Relayed(up, down)
	if err != nil {
		cerr := &ConnError{Client: from, Target: s.target, Op: "copy", Err: err}
		s.metrics.RecordError(cerr.Error())
		s.logger.Verbose("%v", cerr)
		s.publish(cerr)
		return
	}
	s.logger.Verbose("connection from %s closed (%d bytes up, %d down)", from, up, down)
}

// track registers c for forced close on shutdown.  It reports false if
// the session is already shutting down.
func (s *Session) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Session) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Session) publish(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
