package chat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/ledzpl/linechat/internal/protocol"
)

// State is the protocol state of a session.
type State int

const (
	AwaitJoin State = iota
	Active
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitJoin:
		return "await-join"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var (
	errSessionTerminated = errors.New("session terminated")
	errMalformedJoin     = errors.New("expected JOIN <username>")
	errUsernameTaken     = errors.New("username already taken")
	errLineTooLong       = errors.New("line exceeds maximum length")
)

type session struct {
	registry *Registry
	router   *Router
	opts     Options
	logger   *log.Logger

	remote string
	conn   io.ReadWriteCloser
	writer *lineWriter

	state    State
	username string
	client   *Client
	delivery *deliveryTask

	stopDelivery context.CancelFunc
	done         chan struct{}
	workers      sync.WaitGroup
	cleanup      sync.Once
}

func newSession(s *Server, conn io.ReadWriteCloser, remote string) *session {
	return &session{
		registry: s.registry,
		router:   s.router,
		opts:     s.opts,
		logger:   s.logger,
		remote:   remote,
		conn:     conn,
		writer:   newLineWriter(conn),
		state:    AwaitJoin,
		done:     make(chan struct{}),
	}
}

func (s *session) run(ctx context.Context) {
	defer s.workers.Wait()

	s.watch(ctx.Done(), "server shutdown")

	// Room for the line, an optional '\r' and the '\n'.
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, min(s.opts.MaxLineLength+2, 4096)), s.opts.MaxLineLength+2)

	if err := s.join(ctx, scanner); err != nil {
		s.terminate(err)
		return
	}

	s.terminate(s.readLoop(scanner))
}

// join handles the AwaitJoin state: exactly one line, which must be a JOIN
// for a username nobody holds.
func (s *session) join(ctx context.Context, scanner *bufio.Scanner) error {
	line, err := s.nextLine(scanner)
	if err != nil {
		return err
	}

	cmd := protocol.Parse(line)
	if cmd.Kind != protocol.Join {
		return errMalformedJoin
	}

	client := newClient(cmd.Arg, s.opts.QueueSize, s.opts.Overflow)
	if !s.registry.InsertIfAbsent(client) {
		if err := s.writer.writeLine(protocol.FormatError(protocol.ReasonUsernameTaken)); err != nil {
			s.logger.Printf("chat: session %s: write rejection: %v", s.remote, err)
		}
		s.logger.Printf("chat: session %s rejected: %q already taken", s.remote, cmd.Arg)
		return errUsernameTaken
	}

	s.username = cmd.Arg
	s.client = client
	s.state = Active

	deliveryCtx, cancel := context.WithCancel(ctx)
	s.stopDelivery = cancel
	s.delivery = startDelivery(deliveryCtx, client, s.writer)

	s.watch(client.Overloaded(), "slow consumer")

	s.logger.Printf("chat: session %s joined as %q (%s)", client.ID, s.username, s.remote)
	return nil
}

// readLoop handles the Active state until LEAVE or a read failure.
func (s *session) readLoop(scanner *bufio.Scanner) error {
	for {
		line, err := s.nextLine(scanner)
		if err != nil {
			return err
		}

		cmd := protocol.Parse(line)
		switch cmd.Kind {
		case protocol.Leave:
			return errSessionTerminated
		case protocol.Msg:
			s.router.Broadcast(s.username, cmd.Arg)
		default:
			// Unrecognised input never ends an active session.
		}
	}
}

// nextLine returns the next line without its terminator. The length limit
// applies after a trailing '\r' is removed.
func (s *session) nextLine(scanner *bufio.Scanner) (string, error) {
	if !scanner.Scan() {
		return "", readErr(scanner)
	}
	line := strings.TrimSuffix(scanner.Text(), "\r")
	if len(line) > s.opts.MaxLineLength {
		return "", errLineTooLong
	}
	return line, nil
}

// watch closes the connection when trigger fires before the session ends,
// which unblocks the reader and leads into terminate.
func (s *session) watch(trigger <-chan struct{}, reason string) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		select {
		case <-trigger:
			s.logger.Printf("chat: session %s closing: %s", s.remote, reason)
			_ = s.conn.Close()
		case <-s.done:
		}
	}()
}

// terminate is the single exit path of a session, whatever triggered it.
func (s *session) terminate(cause error) {
	s.cleanup.Do(func() {
		s.state = Terminated

		if s.client != nil {
			s.registry.RemoveClient(s.client)
			s.client.Close()
		}
		if s.stopDelivery != nil {
			s.stopDelivery()
		}
		close(s.done)
		_ = s.conn.Close()

		if s.delivery != nil {
			<-s.delivery.Done()
		}

		if s.username == "" {
			if !errors.Is(cause, errUsernameTaken) {
				s.logger.Printf("chat: session %s closed before join: %v", s.remote, cause)
			}
			return
		}

		switch {
		case errors.Is(cause, errSessionTerminated):
			s.logger.Printf("chat: %q left", s.username)
		case errors.Is(cause, io.EOF):
			s.logger.Printf("chat: %q disconnected", s.username)
		default:
			s.logger.Printf("chat: %q dropped: %v", s.username, cause)
		}
	})
}

func readErr(scanner *bufio.Scanner) error {
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
