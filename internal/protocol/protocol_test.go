package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommands(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"JOIN alice", Command{Kind: Join, Arg: "alice"}},
		{"JOIN alice\r", Command{Kind: Join, Arg: "alice"}},
		{"JOIN alicey join", Command{Kind: Join, Arg: "alicey join"}},
		{"JOIN ", Command{Kind: Unknown}},
		{"JOIN   ", Command{Kind: Unknown}},
		{"JOIN", Command{Kind: Unknown}},
		{"join alice", Command{Kind: Unknown}},
		{"MSG hello world", Command{Kind: Msg, Arg: "hello world"}},
		{"MSG ", Command{Kind: Msg, Arg: ""}},
		{"MSG", Command{Kind: Unknown}},
		{"LEAVE", Command{Kind: Leave}},
		{"LEAVE\r", Command{Kind: Leave}},
		{"LEAVE now", Command{Kind: Unknown}},
		{"", Command{Kind: Unknown}},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Parse(tc.line), "line %q", tc.line)
	}
}

func TestFormatRoundTripsThroughParse(t *testing.T) {
	require.Equal(t, Command{Kind: Join, Arg: "bob"}, Parse(FormatJoin("bob")))
	require.Equal(t, Command{Kind: Msg, Arg: "hi there"}, Parse(FormatMsg("hi there")))
	require.Equal(t, Command{Kind: Leave}, Parse(FormatLeave()))
}

func TestParseFrom(t *testing.T) {
	sender, text, ok := ParseFrom(FormatFrom("alice", "hi there"))
	require.True(t, ok)
	require.Equal(t, "alice", sender)
	require.Equal(t, "hi there", text)

	_, _, ok = ParseFrom(FormatError(ReasonUsernameTaken))
	require.False(t, ok)

	require.Equal(t, "ERROR Username already taken", FormatError(ReasonUsernameTaken))
}
