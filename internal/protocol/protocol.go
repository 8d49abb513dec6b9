// Package protocol defines the newline-delimited text protocol spoken between
// chat clients and the relay server.
package protocol

import "strings"

// Kind identifies a client command.
type Kind int

const (
	// Unknown is any line that is not a recognised command.
	Unknown Kind = iota
	// Join registers the connection under a username.
	Join
	// Msg broadcasts text to the other users.
	Msg
	// Leave ends the session gracefully.
	Leave
)

const (
	cmdJoin  = "JOIN"
	cmdMsg   = "MSG"
	cmdLeave = "LEAVE"
	cmdFrom  = "FROM"
	cmdError = "ERROR"
)

// ReasonUsernameTaken is sent when a JOIN names a user that is already connected.
const ReasonUsernameTaken = "Username already taken"

// Command is a parsed client line. Arg holds the username for Join and the
// message text for Msg.
type Command struct {
	Kind Kind
	Arg  string
}

// Parse decodes one inbound line. A trailing carriage return is ignored so
// CRLF clients such as telnet work unchanged.
func Parse(line string) Command {
	line = strings.TrimSuffix(line, "\r")

	if line == cmdLeave {
		return Command{Kind: Leave}
	}

	verb, rest, found := strings.Cut(line, " ")
	if !found {
		return Command{Kind: Unknown}
	}

	switch verb {
	case cmdJoin:
		if strings.TrimSpace(rest) == "" {
			return Command{Kind: Unknown}
		}
		return Command{Kind: Join, Arg: rest}
	case cmdMsg:
		return Command{Kind: Msg, Arg: rest}
	default:
		return Command{Kind: Unknown}
	}
}

// FormatJoin renders a JOIN line without the trailing newline.
func FormatJoin(username string) string {
	return cmdJoin + " " + username
}

// FormatMsg renders a MSG line without the trailing newline.
func FormatMsg(text string) string {
	return cmdMsg + " " + text
}

// FormatLeave renders a LEAVE line without the trailing newline.
func FormatLeave() string {
	return cmdLeave
}

// FormatFrom renders a broadcast as delivered to recipients.
func FormatFrom(sender, text string) string {
	return cmdFrom + " " + sender + " " + text
}

// FormatError renders a rejection line.
func FormatError(reason string) string {
	return cmdError + " " + reason
}

// ParseFrom splits a FROM line into sender and text. Usernames are expected
// to be a single token here; the rest of the line is the text.
func ParseFrom(line string) (sender, text string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSuffix(line, "\r"), cmdFrom+" ")
	if !found {
		return "", "", false
	}
	sender, text, _ = strings.Cut(rest, " ")
	if sender == "" {
		return "", "", false
	}
	return sender, text, true
}
