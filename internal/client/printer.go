package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// printer serialises output from the server reader and the command loop.
type printer struct {
	mu         sync.Mutex
	out        io.Writer
	promptText string
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *printer) prompt() {
	if p.promptText == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, p.promptText)
}

// relay copies server lines to the output until the connection ends.
func (p *printer) relay(conn net.Conn) error {
	reader := bufio.NewScanner(conn)
	for reader.Scan() {
		p.mu.Lock()
		if p.promptText != "" {
			fmt.Fprint(p.out, "\n")
		}
		fmt.Fprintln(p.out, reader.Text())
		if p.promptText != "" {
			fmt.Fprint(p.out, p.promptText)
		}
		p.mu.Unlock()
	}
	if err := reader.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
