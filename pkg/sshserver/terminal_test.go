package sshserver

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type fakeChannel struct {
	in io.Reader

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func newFakeChannel(input string) *fakeChannel {
	return &fakeChannel{in: strings.NewReader(input)}
}

func (c *fakeChannel) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *fakeChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) CloseWrite() error { return nil }

func (c *fakeChannel) SendRequest(string, bool, []byte) (bool, error) { return false, nil }

func (c *fakeChannel) Stderr() io.ReadWriter { return &bytes.Buffer{} }

func (c *fakeChannel) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func shellRequests(pty bool) chan *ssh.Request {
	requests := make(chan *ssh.Request, 4)
	if pty {
		requests <- &ssh.Request{Type: "pty-req"}
	}
	requests <- &ssh.Request{Type: "env"}
	requests <- &ssh.Request{Type: "shell"}
	return requests
}

func readAllLines(t *testing.T, r io.Reader) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestTerminalCooksKeystrokes(t *testing.T) {
	channel := newFakeChannel("JOIN al\x7f\x7falice\r\n\r\nMSG hi\rMSG there\x04MSG lost\r")
	requests := shellRequests(true)

	term, err := AcceptTerminal(channel, requests, TerminalOptions{Header: "linechat"})
	require.NoError(t, err)
	require.True(t, term.Interactive())

	require.Equal(t, []string{"JOIN alice", "MSG hi"}, readAllLines(t, term))

	out := channel.output()
	require.Contains(t, out, "linechat")
	require.Contains(t, out, "> JOIN alice")
	require.Contains(t, out, "^D")

	close(requests)
	require.NoError(t, term.Close())
	require.True(t, channel.closed)
}

func TestTerminalWithoutPtyIsTransparent(t *testing.T) {
	channel := newFakeChannel("JOIN bob\nMSG x\nMSG tail")
	requests := shellRequests(false)

	term, err := AcceptTerminal(channel, requests, TerminalOptions{})
	require.NoError(t, err)
	require.False(t, term.Interactive())

	term.Preface("JOIN preface")
	require.Equal(t, []string{"JOIN preface", "JOIN bob", "MSG x", "MSG tail"}, readAllLines(t, term))
	require.Empty(t, channel.output())

	_, err = io.WriteString(term, "FROM alice hel")
	require.NoError(t, err)
	require.Empty(t, channel.output())

	_, err = io.WriteString(term, "lo\nERROR nope\n")
	require.NoError(t, err)
	require.Equal(t, "FROM alice hello\nERROR nope\n", channel.output())

	close(requests)
	require.NoError(t, term.Close())
}

func TestTerminalColorsSenders(t *testing.T) {
	channel := newFakeChannel("")
	requests := shellRequests(true)

	picker := newHashColorPicker(defaultColorPalette)
	term, err := AcceptTerminal(channel, requests, TerminalOptions{Colors: picker})
	require.NoError(t, err)

	_, err = io.WriteString(term, "FROM alice hi\n")
	require.NoError(t, err)
	require.Contains(t, channel.output(), "FROM "+picker.Pick("alice")+"alice"+colorReset+" hi\r\n")

	close(requests)
	require.NoError(t, term.Close())
}

func TestTerminalRequiresShell(t *testing.T) {
	requests := make(chan *ssh.Request, 1)
	requests <- &ssh.Request{Type: "exec"}
	close(requests)

	_, err := AcceptTerminal(newFakeChannel(""), requests, TerminalOptions{})
	require.ErrorIs(t, err, ErrShellNotRequested)
}

func TestTerminalLimitsLineLength(t *testing.T) {
	channel := newFakeChannel("MSG abcdefgh\n")
	requests := shellRequests(false)

	term, err := AcceptTerminal(channel, requests, TerminalOptions{MaxLineLength: 6})
	require.NoError(t, err)
	require.Equal(t, []string{"MSG ab"}, readAllLines(t, term))

	close(requests)
	require.NoError(t, term.Close())
}

func TestHashColorPickerIsStable(t *testing.T) {
	picker := newHashColorPicker(defaultColorPalette)
	require.Equal(t, picker.Pick("alice"), picker.Pick("alice"))
	require.Contains(t, defaultColorPalette, picker.Pick("bob"))
	require.Nil(t, newHashColorPicker(nil))
}
