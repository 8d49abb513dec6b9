// Package sshserver exposes the chat over SSH: it owns the listener, the
// handshake and host key, and adapts interactive shell channels into
// line-oriented streams.
package sshserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
)

// SessionHandler handles an accepted SSH "session" channel. It runs on its
// own goroutine and should return when ctx is cancelled.
type SessionHandler func(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request)

// Server wraps the SSH listener lifecycle.
type Server struct {
	Addr   string
	Config *ssh.ServerConfig

	logger *log.Logger
	conns  sync.WaitGroup
}

// New creates a Server with the provided host signer. Clients are not
// authenticated; the SSH user name is only used as a display name.
func New(addr string, signer ssh.Signer, logger *log.Logger) *Server {
	cfg := &ssh.ServerConfig{
		NoClientAuth:  true,
		ServerVersion: "SSH-2.0-linechat",
	}
	cfg.AddHostKey(signer)

	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		Addr:   addr,
		Config: cfg,
		logger: logger,
	}
}

// ListenAndServe binds Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, handler SessionHandler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sshserver: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts SSH connections from listener until ctx is cancelled, then
// waits for open connections to wind down.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler SessionHandler) error {
	if handler == nil {
		listener.Close()
		return errors.New("sshserver: session handler required")
	}
	defer listener.Close()

	shutdown := make(chan struct{})
	defer close(shutdown)

	go func() {
		select {
		case <-ctx.Done():
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Printf("sshserver: listener close error: %v", err)
			}
		case <-shutdown:
		}
	}()

	s.logger.Printf("sshserver: listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.conns.Wait()
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.conns.Wait()
				return fmt.Errorf("sshserver: accept: %w", err)
			}
			s.logger.Printf("sshserver: accept error: %v", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(ctx, conn, handler)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, tcpConn net.Conn, handler SessionHandler) {
	defer tcpConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.Config)
	if err != nil {
		s.logger.Printf("sshserver: handshake failed: %v", err)
		return
	}
	defer sshConn.Close()

	s.logger.Printf("sshserver: new connection from %s (%s) as %q", sshConn.RemoteAddr(), sshConn.ClientVersion(), sshConn.User())

	go ssh.DiscardRequests(reqs)

	var channels sync.WaitGroup
	defer channels.Wait()

	for {
		select {
		case <-ctx.Done():
			sshConn.Close()
			return
		case newChannel, ok := <-chans:
			if !ok {
				return
			}
			if newChannel.ChannelType() != "session" {
				newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				s.logger.Printf("sshserver: channel accept failed: %v", err)
				continue
			}

			channels.Add(1)
			go func() {
				defer channels.Done()
				handler(ctx, sshConn, channel, requests)
			}()
		}
	}
}
