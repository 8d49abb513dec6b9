package sshserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/ssh"

	"github.com/ledzpl/linechat/internal/protocol"
)

const (
	ctrlC      = 0x03
	ctrlD      = 0x04
	backspace  = '\b'
	deleteChar = 0x7f
)

// ErrShellNotRequested indicates the SSH client closed the request stream without asking for a shell.
var ErrShellNotRequested = errors.New("sshserver: shell request not received before channel closed")

// TerminalOptions tune how a Terminal cooks input and renders output.
type TerminalOptions struct {
	// MaxLineLength caps typed input in runes. Zero means unbounded.
	MaxLineLength int
	// Header is shown in a status line at the top of pty sessions.
	Header string
	// Colors picks sender colors for FROM lines. Nil uses the default palette.
	Colors ColorPicker
}

// Terminal turns an interactive SSH shell channel into a line-oriented
// io.ReadWriteCloser. Reads return the lines the user typed, each terminated
// by '\n'; writes take newline-terminated protocol lines and render them
// above the prompt.
type Terminal struct {
	channel ssh.Channel
	reader  *bufio.Reader
	pty     bool

	buffer *lineBuffer
	ui     *terminalUI
	colors ColorPicker

	pending []byte

	outMu  sync.Mutex
	outBuf []byte

	workers   sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// AcceptTerminal drains channel requests until the client asks for a shell,
// then returns a Terminal bound to the channel. Later requests keep being
// answered in the background.
func AcceptTerminal(channel ssh.Channel, requests <-chan *ssh.Request, opts TerminalOptions) (*Terminal, error) {
	colors := opts.Colors
	if colors == nil {
		colors = newHashColorPicker(defaultColorPalette)
	}

	t := &Terminal{
		channel: channel,
		reader:  bufio.NewReader(channel),
		buffer:  newLineBuffer(opts.MaxLineLength),
		ui:      newTerminalUI(channel, opts.Header),
		colors:  colors,
	}

	if err := t.awaitShell(requests); err != nil {
		return nil, err
	}

	if t.pty {
		if err := t.ui.ClearScreen(); err != nil {
			return nil, err
		}
		if err := t.ui.UpdatePrompt(""); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Interactive reports whether the client requested a pty.
func (t *Terminal) Interactive() bool {
	return t.pty
}

// Preface queues line as if the user had typed it. Call before the first Read.
func (t *Terminal) Preface(line string) {
	t.pending = append(t.pending, line...)
	t.pending = append(t.pending, '\n')
}

func (t *Terminal) awaitShell(requests <-chan *ssh.Request) error {
	for req := range requests {
		if !t.handleRequest(req) {
			continue
		}

		t.startRequestPump(requests)
		return nil
	}
	return ErrShellNotRequested
}

func (t *Terminal) handleRequest(req *ssh.Request) bool {
	switch req.Type {
	case "shell":
		req.Reply(true, nil)
		return true
	case "pty-req":
		t.pty = true
		req.Reply(true, nil)
	case "env", "window-change", "signal":
		req.Reply(true, nil)
	default:
		req.Reply(false, nil)
	}
	return false
}

func (t *Terminal) startRequestPump(requests <-chan *ssh.Request) {
	t.workers.Add(1)
	go func() {
		defer t.workers.Done()
		for req := range requests {
			switch req.Type {
			case "window-change", "env", "signal":
				req.Reply(true, nil)
			default:
				req.Reply(false, nil)
			}
		}
	}()
}

// Read returns cooked input. io.EOF is returned once the user hangs up or
// presses Ctrl+C or Ctrl+D.
func (t *Terminal) Read(p []byte) (int, error) {
	for len(t.pending) == 0 {
		line, err := t.readLine()
		if err != nil {
			return 0, err
		}
		t.pending = append(t.pending, line...)
		t.pending = append(t.pending, '\n')
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// readLine processes keystrokes until a non-empty line is submitted.
func (t *Terminal) readLine() (string, error) {
	for {
		r, _, err := t.reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) && t.buffer.Len() > 0 {
				return t.buffer.Drain(), nil
			}
			return "", err
		}

		switch r {
		case '\r', '\n':
			t.swallowLineFeed(r)
			text := t.buffer.Drain()
			if strings.TrimSpace(text) == "" {
				if err := t.echoPrompt(); err != nil {
					return "", err
				}
				continue
			}
			if t.pty {
				if err := t.ui.CommitInput(); err != nil {
					return "", err
				}
			}
			return text, nil
		case ctrlC, ctrlD:
			t.buffer.Reset()
			if t.pty {
				label := "^C"
				if r == ctrlD {
					label = "^D"
				}
				_ = t.ui.DisplayControlAck(label)
			}
			return "", io.EOF
		case backspace, deleteChar:
			if t.buffer.TrimLast() {
				if err := t.echoPrompt(); err != nil {
					return "", err
				}
			}
		default:
			if unicode.IsPrint(r) && t.buffer.Append(r) {
				if err := t.echoPrompt(); err != nil {
					return "", err
				}
			}
		}
	}
}

func (t *Terminal) swallowLineFeed(r rune) {
	if r != '\r' || t.reader.Buffered() == 0 {
		return
	}
	if next, _, err := t.reader.ReadRune(); err == nil && next != '\n' {
		_ = t.reader.UnreadRune()
	}
}

func (t *Terminal) echoPrompt() error {
	if !t.pty {
		return nil
	}
	return t.ui.UpdatePrompt(t.buffer.Snapshot())
}

// Write renders every complete line in p. Incomplete trailing data is kept
// until its newline arrives.
func (t *Terminal) Write(p []byte) (int, error) {
	t.outMu.Lock()
	defer t.outMu.Unlock()

	t.outBuf = append(t.outBuf, p...)
	for {
		i := bytes.IndexByte(t.outBuf, '\n')
		if i < 0 {
			break
		}
		line := string(t.outBuf[:i])
		t.outBuf = t.outBuf[i+1:]

		if err := t.displayLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (t *Terminal) displayLine(line string) error {
	if !t.pty {
		return t.ui.write(line + "\n")
	}
	return t.ui.DisplayMessage(t.render(line), t.buffer.Snapshot())
}

func (t *Terminal) render(line string) string {
	sender, text, ok := protocol.ParseFrom(line)
	if !ok {
		return line
	}
	return "FROM " + t.colors.Pick(sender) + sender + colorReset + " " + text
}

// Close closes the channel and waits for the request pump to stop.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.channel.Close()
		t.workers.Wait()
	})
	return t.closeErr
}

// ConnHandler serves one line-oriented connection until it ends.
type ConnHandler func(ctx context.Context, conn io.ReadWriteCloser, remote string)

// TerminalHandler returns a SessionHandler that wraps each shell channel in
// a Terminal, joins the chat under the SSH user name when there is one, and
// hands the Terminal to serve.
func TerminalHandler(serve ConnHandler, opts TerminalOptions, logger *log.Logger) SessionHandler {
	if logger == nil {
		logger = log.Default()
	}
	return func(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request) {
		defer channel.Close()

		term, err := AcceptTerminal(channel, requests, opts)
		if err != nil {
			if !errors.Is(err, ErrShellNotRequested) {
				logger.Printf("sshserver: terminal setup for %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		defer term.Close()

		if user := strings.TrimSpace(conn.User()); user != "" {
			term.Preface(protocol.FormatJoin(user))
		}
		serve(ctx, term, conn.RemoteAddr().String())
	}
}
