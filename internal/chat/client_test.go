package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledzpl/linechat/internal/config"
)

func TestClientDropNewestKeepsQueuedEnvelopes(t *testing.T) {
	c := newClient("alice", 2, config.DropNewest)

	require.True(t, c.Deliver(Envelope{Sender: "bob", Body: "1"}))
	require.True(t, c.Deliver(Envelope{Sender: "bob", Body: "2"}))
	require.False(t, c.Deliver(Envelope{Sender: "bob", Body: "3"}))

	require.Equal(t, []string{"1", "2"}, drainBodies(c))
	requireNotOverloaded(t, c)
}

func TestClientDropOldestMakesRoom(t *testing.T) {
	c := newClient("alice", 2, config.DropOldest)

	for _, body := range []string{"1", "2", "3", "4"} {
		require.True(t, c.Deliver(Envelope{Sender: "bob", Body: body}))
	}

	require.Equal(t, []string{"3", "4"}, drainBodies(c))
	requireNotOverloaded(t, c)
}

func TestClientDisconnectPolicySignalsOverload(t *testing.T) {
	c := newClient("alice", 1, config.Disconnect)

	require.True(t, c.Deliver(Envelope{Sender: "bob", Body: "1"}))
	require.False(t, c.Deliver(Envelope{Sender: "bob", Body: "2"}))
	require.False(t, c.Deliver(Envelope{Sender: "bob", Body: "3"}))

	select {
	case <-c.Overloaded():
	default:
		t.Fatal("overload should be signalled")
	}
}

func TestClientDeliverAfterCloseIsNoop(t *testing.T) {
	c := newClient("alice", 2, config.DropNewest)
	require.True(t, c.Deliver(Envelope{Sender: "bob", Body: "kept"}))

	c.Close()
	c.Close()

	require.False(t, c.Deliver(Envelope{Sender: "bob", Body: "late"}))
	require.Equal(t, []string{"kept"}, drainBodies(c))

	_, ok := <-c.Queue()
	require.False(t, ok, "queue should be closed")
}

func TestClientHasUniqueID(t *testing.T) {
	a := newClient("alice", 1, config.DropNewest)
	b := newClient("alice", 1, config.DropNewest)
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
}

func drainBodies(c *Client) []string {
	var bodies []string
	for {
		select {
		case env, ok := <-c.Queue():
			if !ok {
				return bodies
			}
			bodies = append(bodies, env.Body)
		default:
			return bodies
		}
	}
}

func requireNotOverloaded(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Overloaded():
		t.Fatal("overload should not be signalled")
	default:
	}
}
