package chat

import "github.com/ledzpl/linechat/internal/protocol"

// Envelope is one broadcast message tagged with its sender.
type Envelope struct {
	Sender string
	Body   string
}

// Line renders the envelope in wire form, without the trailing newline.
func (e Envelope) Line() string {
	return protocol.FormatFrom(e.Sender, e.Body)
}
