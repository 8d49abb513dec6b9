package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "127.0.0.1:8080", cfg.Addr)
	require.Equal(t, DropNewest, cfg.Overflow)
}

func TestFromLookupOverlaysEnvironment(t *testing.T) {
	env := map[string]string{
		"LINECHAT_ADDR":            "0.0.0.0:9000",
		"LINECHAT_WS_ADDR":         ":8081",
		"LINECHAT_ALLOWED_ORIGINS": "http://a.example, ,http://b.example",
		"LINECHAT_QUEUE_SIZE":      "8",
		"LINECHAT_MAX_LINE":        "nope",
		"LINECHAT_OVERFLOW":        "Drop-Oldest",
	}
	cfg, err := fromLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9000", cfg.Addr)
	require.Equal(t, ":8081", cfg.WSAddr)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 8, cfg.QueueSize)
	require.Equal(t, defaultMaxLineLength, cfg.MaxLineLength)
	require.Equal(t, DropOldest, cfg.Overflow)
}

func TestFromLookupRejectsUnknownPolicy(t *testing.T) {
	_, err := fromLookup(func(k string) (string, bool) {
		if k == "LINECHAT_OVERFLOW" {
			return "block", true
		}
		return "", false
	})
	require.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestRegisterFlags(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	err := fs.Parse([]string{"-queue-size", "2", "-overflow", "disconnect", "-ssh-addr", ":2222", "-allowed-origins", "http://x"})
	require.NoError(t, err)

	require.Equal(t, 2, cfg.QueueSize)
	require.Equal(t, Disconnect, cfg.Overflow)
	require.Equal(t, ":2222", cfg.SSHAddr)
	require.Equal(t, []string{"http://x"}, cfg.AllowedOrigins)
	require.Equal(t, defaultAddr, cfg.Addr)

	require.Error(t, fs.Parse([]string{"-overflow", "block"}))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.QueueSize = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxLineLength = -1
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Overflow = "block"
	require.ErrorIs(t, cfg.Validate(), ErrUnknownPolicy)

	cfg = Default()
	cfg.Addr = ""
	require.Error(t, cfg.Validate())
}
