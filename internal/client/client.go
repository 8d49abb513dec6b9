// Package client is the interactive terminal client: it joins the relay,
// prints whatever the server sends and turns local commands into protocol
// lines.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/ledzpl/linechat/internal/protocol"
)

const usageHint = "Unknown command. Use: send <msg> | leave"

// Client holds the connection parameters.
type Client struct {
	Addr     string
	Username string
	// Prompt is printed before each local command when non-empty.
	Prompt string

	dialer net.Dialer
}

// New returns a Client for host:port.
func New(host, port, username string) *Client {
	return &Client{
		Addr:     net.JoinHostPort(host, port),
		Username: username,
	}
}

// Run connects, joins, and relays until the user leaves, input ends, the
// server closes the connection, or ctx is cancelled.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("client: username required")
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("client: connect %s: %w", c.Addr, err)
	}
	defer conn.Close()

	fmt.Fprintf(out, "Connected to %s\n", c.Addr)

	if err := writeLine(conn, protocol.FormatJoin(c.Username)); err != nil {
		return fmt.Errorf("client: join: %w", err)
	}

	printer := &printer{out: out, promptText: c.Prompt}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- printer.relay(conn)
	}()

	commands := make(chan string)
	inputDone := make(chan error, 1)
	go func() {
		inputDone <- scanCommands(ctx, in, commands)
	}()

	printer.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serverDone:
			printer.println("Disconnected")
			return err
		case err := <-inputDone:
			printer.println("Disconnected")
			return err
		case line := <-commands:
			leave, err := c.handleCommand(conn, printer, line)
			if err != nil {
				return fmt.Errorf("client: send: %w", err)
			}
			if leave {
				printer.println("Disconnected")
				return nil
			}
			printer.prompt()
		}
	}
}

func (c *Client) handleCommand(conn net.Conn, p *printer, line string) (leave bool, err error) {
	line = strings.TrimSpace(line)

	if line == "leave" {
		return true, writeLine(conn, protocol.FormatLeave())
	}
	if text, ok := strings.CutPrefix(line, "send "); ok {
		return false, writeLine(conn, protocol.FormatMsg(text))
	}
	if line != "" {
		p.println(usageHint)
	}
	return false, nil
}

// scanCommands feeds input lines to commands. A read blocked on a terminal
// cannot be interrupted, so after ctx ends this goroutine exits on the next line.
func scanCommands(ctx context.Context, in io.Reader, commands chan<- string) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case commands <- scanner.Text():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}
