package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ledzpl/linechat/internal/config"
)

// Client is the outbound handle of one joined user. Any number of goroutines
// may Deliver to it; exactly one delivery task drains it in FIFO order.
type Client struct {
	ID       string
	Username string

	policy config.OverflowPolicy

	mu     sync.Mutex
	closed bool
	queue  chan Envelope

	overloaded     chan struct{}
	overloadedOnce sync.Once
}

func newClient(username string, queueSize int, policy config.OverflowPolicy) *Client {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Client{
		ID:         uuid.NewString(),
		Username:   username,
		policy:     policy,
		queue:      make(chan Envelope, queueSize),
		overloaded: make(chan struct{}),
	}
}

// Queue returns the outbound envelope channel. It is closed by Close.
func (c *Client) Queue() <-chan Envelope {
	return c.queue
}

// Overloaded is closed when the disconnect policy decides this client can no
// longer keep up.
func (c *Client) Overloaded() <-chan struct{} {
	return c.overloaded
}

// Deliver enqueues env without blocking and reports whether it was queued.
// A full queue is handled by the client's overflow policy; a closed client
// drops everything.
func (c *Client) Deliver(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.queue <- env:
		return true
	default:
	}

	switch c.policy {
	case config.DropOldest:
		select {
		case <-c.queue:
		default:
		}
		select {
		case c.queue <- env:
			return true
		default:
			return false
		}
	case config.Disconnect:
		c.overloadedOnce.Do(func() { close(c.overloaded) })
		return false
	default:
		return false
	}
}

// Close stops accepting envelopes. Envelopes still queued stay readable from
// Queue until it is drained. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.queue)
}
