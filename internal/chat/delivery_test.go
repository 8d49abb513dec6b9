package chat

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledzpl/linechat/internal/config"
)

type failingWriter struct {
	mu     sync.Mutex
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	return 0, errors.New("broken pipe")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDeliveryWritesEnvelopesInOrder(t *testing.T) {
	c := newClient("bob", 8, config.DropNewest)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	task := startDelivery(ctx, c, newLineWriter(out))

	require.True(t, c.Deliver(Envelope{Sender: "alice", Body: "one"}))
	require.True(t, c.Deliver(Envelope{Sender: "carol", Body: "two"}))

	require.Eventually(t, func() bool {
		return out.String() == "FROM alice one\nFROM carol two\n"
	}, time.Second, 5*time.Millisecond)

	c.Close()
	waitDone(t, task)
	require.NoError(t, task.Err())
}

func TestDeliveryStopsOnWriteError(t *testing.T) {
	c := newClient("bob", 8, config.DropNewest)
	w := &failingWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	task := startDelivery(ctx, c, newLineWriter(w))

	require.True(t, c.Deliver(Envelope{Sender: "alice", Body: "lost"}))
	waitDone(t, task)
	require.Error(t, task.Err())

	require.True(t, c.Deliver(Envelope{Sender: "alice", Body: "queued but never written"}))
	time.Sleep(20 * time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Equal(t, 1, w.writes)
}

func TestDeliveryStopsOnCancel(t *testing.T) {
	c := newClient("bob", 8, config.DropNewest)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	task := startDelivery(ctx, c, newLineWriter(out))

	cancel()
	waitDone(t, task)

	require.True(t, c.Deliver(Envelope{Sender: "alice", Body: "discarded"}))
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, out.String())
}

func waitDone(t *testing.T, task *deliveryTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("delivery task did not stop")
	}
}
