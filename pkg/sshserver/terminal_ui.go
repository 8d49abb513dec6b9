package sshserver

import (
	"io"
	"sync"
)

const (
	seqSaveCursor    = "\0337\033[s"
	seqRestoreCursor = "\033[u\0338"
	seqCursorHome    = "\033[H"
	seqClearLine     = "\033[2K"
	seqInsertLine    = "\033[1L"
	seqClearScreen   = "\033[2J"
	seqEraseToEnd    = "\033[K"

	prompt = "> "
)

// terminalUI draws server lines above an input prompt on a VT100 terminal.
type terminalUI struct {
	mu sync.Mutex
	w  io.Writer

	header     string
	statusOnce sync.Once
	statusErr  error
}

func newTerminalUI(w io.Writer, header string) *terminalUI {
	return &terminalUI{w: w, header: header}
}

func (ui *terminalUI) write(s string) error {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	_, err := io.WriteString(ui.w, s)
	return err
}

func (ui *terminalUI) ClearScreen() error {
	return ui.write(seqClearScreen + seqCursorHome)
}

// DisplayControlAck echoes a control key such as ^C on its own line.
func (ui *terminalUI) DisplayControlAck(label string) error {
	return ui.write("\r" + seqEraseToEnd + label + "\r\n")
}

// DisplayMessage prints msg above the prompt and redraws the prompt with the
// partially typed input.
func (ui *terminalUI) DisplayMessage(msg, input string) error {
	return ui.write("\r" + seqEraseToEnd + msg + "\r\n" + prompt + input + seqEraseToEnd)
}

// CommitInput leaves the submitted line on screen and starts a fresh prompt.
func (ui *terminalUI) CommitInput() error {
	return ui.write("\r\n" + prompt + seqEraseToEnd)
}

func (ui *terminalUI) UpdatePrompt(input string) error {
	if err := ui.ensureStatusLine(); err != nil {
		return err
	}
	return ui.write("\r" + prompt + input + seqEraseToEnd)
}

func (ui *terminalUI) ensureStatusLine() error {
	ui.statusOnce.Do(func() {
		if ui.header == "" {
			return
		}
		ui.statusErr = ui.write(seqSaveCursor + seqCursorHome + seqInsertLine + seqClearLine + ui.header + seqRestoreCursor)
	})
	return ui.statusErr
}
