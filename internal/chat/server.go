// Package chat implements the relay core: the registry of joined users, the
// per-connection session state machine, broadcast fan-out and the delivery
// task that writes each user's queued messages to their connection.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/ledzpl/linechat/internal/config"
)

// Options tune per-session behaviour.
type Options struct {
	QueueSize     int
	Overflow      config.OverflowPolicy
	MaxLineLength int
}

// OptionsFromConfig extracts the session options from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		QueueSize:     cfg.QueueSize,
		Overflow:      cfg.Overflow,
		MaxLineLength: cfg.MaxLineLength,
	}
}

func (o Options) withDefaults() Options {
	def := config.Default()
	if o.QueueSize <= 0 {
		o.QueueSize = def.QueueSize
	}
	if o.Overflow == "" {
		o.Overflow = def.Overflow
	}
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = def.MaxLineLength
	}
	return o
}

// Server accepts connections and runs one session per connection against a
// shared registry.
type Server struct {
	Addr string

	registry *Registry
	router   *Router
	opts     Options
	logger   *log.Logger
}

// New creates a Server with a fresh registry.
func New(addr string, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	registry := NewRegistry()
	return &Server{
		Addr:     addr,
		registry: registry,
		router:   NewRouter(registry),
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Registry returns the server's membership registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Router returns the server's broadcast router.
func (s *Server) Router() *Router {
	return s.router
}

// ListenAndServe binds Addr and serves until ctx is cancelled. A bind failure
// is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("chat: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled, then waits
// for every session it started to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	var sessions sync.WaitGroup
	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Printf("chat: listener close error: %v", err)
			}
		case <-shutdown:
		}
	}()

	s.logger.Printf("chat: listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				sessions.Wait()
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				sessions.Wait()
				return fmt.Errorf("chat: accept: %w", err)
			}
			s.logger.Printf("chat: accept error: %v", err)
			continue
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.HandleConn(ctx, conn, conn.RemoteAddr().String())
		}()
	}
}

// HandleConn runs one session over conn and returns once it has terminated.
// The connection is always closed on return.
func (s *Server) HandleConn(ctx context.Context, conn io.ReadWriteCloser, remote string) {
	s.logger.Printf("chat: new connection from %s", remote)
	newSession(s, conn, remote).run(ctx)
}
