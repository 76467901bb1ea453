package gdbserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/atomic"

	errs "github.com/bpflab/vmdbg/errors"
	"github.com/bpflab/vmdbg/logger"
)

const (
	// DefaultPacketSize is advertised in the qSupported reply.
	DefaultPacketSize = 4096

	defaultWorkers = 8
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("gdbserver: server closed")

// Config configures the debug server.
type Config struct {
	// Network is "tcp" or "unix".
	Network string

	// Addr is the listen address: host:port for tcp, a socket path for
	// unix.
	Addr string

	// Workers bounds the number of concurrent debug sessions.
	Workers int

	// PacketSize is the maximum command packet size advertised to
	// clients.
	PacketSize int
}

func (c *Config) withDefaults() {
	if c.Network == "" {
		c.Network = "tcp"
	}

	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}

	if c.PacketSize <= 0 {
		c.PacketSize = DefaultPacketSize
	}
}

// Server accepts debugger connections and runs one session per
// connection on a bounded worker pool.
type Server struct {
	cfg     Config
	factory TargetFactory
	ln      net.Listener
	pool    pond.Pool
	closed  *atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates a Server. The factory is invoked once per accepted
// connection so every session debugs a fresh target.
func New(cfg Config, factory TargetFactory) *Server {
	cfg.withDefaults()

	return &Server{
		cfg:     cfg,
		factory: factory,
		pool:    pond.NewPool(cfg.Workers),
		closed:  atomic.NewBool(false),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the configured address. Serve calls it implicitly; it is
// exposed so callers can bind (and discover the port for ":0") before
// serving.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}

	ln, err := net.Listen(s.cfg.Network, s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", s.cfg.Network, s.cfg.Addr, err)
	}

	s.ln = ln

	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}

	return s.ln.Addr()
}

// Serve accepts connections until the context is canceled or the server
// is closed. Each connection becomes a session on the worker pool.
func (s *Server) Serve(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	if err := s.Listen(); err != nil {
		return err
	}

	// A canceled context unblocks Accept by closing the listener, and
	// unblocks sessions parked in a packet read by closing their conns.
	stop := context.AfterFunc(ctx, func() {
		_ = s.ln.Close()
		s.closeConns()
	})
	defer stop()

	log := logger.Get(ctx)
	log.Info("Waiting for a debugger connection",
		"network", s.cfg.Network, "addr", s.ln.Addr().String())

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("accepting connection: %w", err)
		}

		sessionsStarted.Inc()

		s.track(conn)

		sess := newSession(conn, s.factory(), s.cfg.PacketSize)

		s.pool.Submit(func() {
			defer s.untrack(conn)

			sess.run(ctx)
		})
	}
}

// Close stops accepting connections and waits for running sessions to
// finish.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var collected errs.Collection

	// The context hook may have closed the listener already.
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			collected.Add(err)
		}
	}

	// Idle sessions sit in a blocking packet read; closing their conns is
	// what lets the pool drain.
	s.closeConns()

	s.pool.StopAndWait()

	return collected.GetError()
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A connection can slip through Accept while Close is running.
	if s.closed.Load() {
		_ = conn.Close()
	}

	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		_ = conn.Close()
	}
}
