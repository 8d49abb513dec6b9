// Package config holds the runtime settings of the relay server: listen
// addresses, per-client queue sizing and the overflow policy.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OverflowPolicy decides what happens when a recipient's outbound queue is full.
type OverflowPolicy string

const (
	// DropNewest discards the envelope that did not fit.
	DropNewest OverflowPolicy = "drop-newest"
	// DropOldest discards the oldest queued envelope to make room.
	DropOldest OverflowPolicy = "drop-oldest"
	// Disconnect terminates the slow consumer's session.
	Disconnect OverflowPolicy = "disconnect"
)

// ErrUnknownPolicy is returned for overflow policy names that are not recognised.
var ErrUnknownPolicy = errors.New("config: unknown overflow policy")

// ParseOverflowPolicy converts a policy name into an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DropNewest, DropOldest, Disconnect:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// String implements flag.Value.
func (p *OverflowPolicy) String() string {
	if p == nil {
		return ""
	}
	return string(*p)
}

// Set implements flag.Value.
func (p *OverflowPolicy) Set(s string) error {
	parsed, err := ParseOverflowPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Config holds the server configuration.
type Config struct {
	// Addr is the plain TCP listen address.
	Addr string
	// SSHAddr enables the SSH terminal front-end when non-empty.
	SSHAddr string
	// HostKeyPath is the SSH host key, generated when missing. Empty means an ephemeral key.
	HostKeyPath string
	// WSAddr enables the WebSocket front-end when non-empty.
	WSAddr string
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string

	QueueSize     int
	Overflow      OverflowPolicy
	MaxLineLength int
}

const (
	defaultAddr          = "127.0.0.1:8080"
	defaultHostKeyPath   = "configs/ssh_host_rsa"
	defaultQueueSize     = 64
	defaultMaxLineLength = 4096
)

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		Addr:          defaultAddr,
		HostKeyPath:   defaultHostKeyPath,
		QueueSize:     defaultQueueSize,
		Overflow:      DropNewest,
		MaxLineLength: defaultMaxLineLength,
	}
}

// FromEnv returns the defaults overlaid with LINECHAT_* environment variables.
// Malformed numeric values keep their defaults; a malformed policy is an error.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup("LINECHAT_ADDR"); ok && v != "" {
		cfg.Addr = v
	}
	if v, ok := lookup("LINECHAT_SSH_ADDR"); ok {
		cfg.SSHAddr = v
	}
	if v, ok := lookup("LINECHAT_HOST_KEY"); ok {
		cfg.HostKeyPath = v
	}
	if v, ok := lookup("LINECHAT_WS_ADDR"); ok {
		cfg.WSAddr = v
	}
	if v, ok := lookup("LINECHAT_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.AllowedOrigins = parseList(v)
	}
	if v, ok := lookup("LINECHAT_QUEUE_SIZE"); ok {
		cfg.QueueSize = parsePositive(v, cfg.QueueSize)
	}
	if v, ok := lookup("LINECHAT_MAX_LINE"); ok {
		cfg.MaxLineLength = parsePositive(v, cfg.MaxLineLength)
	}
	if v, ok := lookup("LINECHAT_OVERFLOW"); ok && v != "" {
		policy, err := ParseOverflowPolicy(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Overflow = policy
	}

	return cfg, nil
}

// RegisterFlags binds command-line flags to the fields of cfg, using the
// current values as defaults.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP address for the chat server")
	fs.StringVar(&cfg.SSHAddr, "ssh-addr", cfg.SSHAddr, "TCP address for the SSH terminal front-end (disabled when empty)")
	fs.StringVar(&cfg.HostKeyPath, "host-key", cfg.HostKeyPath, "Path to the SSH host private key (auto-generated if missing)")
	fs.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "HTTP address for the WebSocket front-end (disabled when empty)")
	fs.Func("allowed-origins", "Comma separated WebSocket origins (all when empty)", func(s string) error {
		cfg.AllowedOrigins = parseList(s)
		return nil
	})
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Outbound messages buffered per client")
	fs.Var(&cfg.Overflow, "overflow", "Policy for a full client queue: drop-newest, drop-oldest or disconnect")
	fs.IntVar(&cfg.MaxLineLength, "max-line", cfg.MaxLineLength, "Maximum inbound line length in bytes")
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	if cfg.Addr == "" {
		return errors.New("config: listen address required")
	}
	if cfg.QueueSize <= 0 {
		return fmt.Errorf("config: queue size must be positive, got %d", cfg.QueueSize)
	}
	if cfg.MaxLineLength <= 0 {
		return fmt.Errorf("config: max line length must be positive, got %d", cfg.MaxLineLength)
	}
	if _, err := ParseOverflowPolicy(string(cfg.Overflow)); err != nil {
		return err
	}
	return nil
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositive(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
