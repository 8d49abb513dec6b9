package chat

import (
	"context"
	"io"
	"sync"
)

// lineWriter serialises whole-line writes to a connection.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w}
}

func (w *lineWriter) writeLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := io.WriteString(w.w, line+"\n")
	return err
}

// deliveryTask drains one client's queue onto its connection.
type deliveryTask struct {
	client *Client
	writer *lineWriter

	done chan struct{}
	err  error
}

func startDelivery(ctx context.Context, client *Client, writer *lineWriter) *deliveryTask {
	t := &deliveryTask{
		client: client,
		writer: writer,
		done:   make(chan struct{}),
	}
	go t.run(ctx)
	return t
}

// run exits on the first write error, when the queue is closed, or when ctx
// is cancelled. Envelopes left in the queue at that point are discarded.
func (t *deliveryTask) run(ctx context.Context) {
	defer close(t.done)

	queue := t.client.Queue()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-queue:
			if !ok || ctx.Err() != nil {
				return
			}
			if err := t.writer.writeLine(env.Line()); err != nil {
				t.err = err
				return
			}
		}
	}
}

// Done is closed once the task has stopped.
func (t *deliveryTask) Done() <-chan struct{} {
	return t.done
}

// Err returns the write error that stopped the task, if any. Only valid after Done.
func (t *deliveryTask) Err() error {
	return t.err
}
