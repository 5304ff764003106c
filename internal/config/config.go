package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/mouseconnect/internal/ble"
	"github.com/chaz8081/mouseconnect/internal/ble/protocol"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string     `yaml:"log_level"`
	Link     LinkConfig `yaml:"link"`
}

// LinkConfig selects the peer and GATT resources and tunes the transport.
type LinkConfig struct {
	ServiceUUID    string `yaml:"service_uuid"`
	WriteCharUUID  string `yaml:"write_char_uuid"`
	NotifyCharUUID string `yaml:"notify_char_uuid"`
	// PeerAddress restricts the connected peers considered; empty means any.
	PeerAddress     string        `yaml:"peer_address"`
	MaxFrameSize    int           `yaml:"max_frame_size"`
	NotifyQueue     int           `yaml:"notify_queue"`
	LookupTimeout   time.Duration `yaml:"lookup_timeout"`
	ExchangeTimeout time.Duration `yaml:"exchange_timeout"` // 0 = unbounded
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mouseconnect")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Link: LinkConfig{
			ServiceUUID:    ble.ServiceUUID,
			WriteCharUUID:  ble.WriteCharUUID,
			NotifyCharUUID: ble.NotifyCharUUID,
			MaxFrameSize:   protocol.MaxFrameSize,
			NotifyQueue:    64,
			LookupTimeout:  5 * time.Second,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	uuids := []struct{ key, value string }{
		{"link.service_uuid", c.Link.ServiceUUID},
		{"link.write_char_uuid", c.Link.WriteCharUUID},
		{"link.notify_char_uuid", c.Link.NotifyCharUUID},
	}
	for _, u := range uuids {
		if _, err := bluetooth.ParseUUID(u.value); err != nil {
			return fmt.Errorf("%s must be a 128-bit UUID, got %q", u.key, u.value)
		}
	}
	if strings.EqualFold(c.Link.WriteCharUUID, c.Link.NotifyCharUUID) {
		return fmt.Errorf("link.write_char_uuid and link.notify_char_uuid must differ")
	}

	if c.Link.MaxFrameSize < 1 || c.Link.MaxFrameSize > protocol.MaxFrameSize {
		return fmt.Errorf("link.max_frame_size must be 1..%d, got %d", protocol.MaxFrameSize, c.Link.MaxFrameSize)
	}
	if c.Link.NotifyQueue < 1 {
		return fmt.Errorf("link.notify_queue must be > 0")
	}
	if c.Link.LookupTimeout <= 0 {
		return fmt.Errorf("link.lookup_timeout must be > 0")
	}
	if c.Link.ExchangeTimeout < 0 {
		return fmt.Errorf("link.exchange_timeout must not be negative")
	}
	return nil
}

// LinkOptions converts the link section into ble.LinkOptions.
func (c *Config) LinkOptions() ble.LinkOptions {
	return ble.LinkOptions{
		ServiceUUID:    strings.ToLower(c.Link.ServiceUUID),
		WriteCharUUID:  strings.ToLower(c.Link.WriteCharUUID),
		NotifyCharUUID: strings.ToLower(c.Link.NotifyCharUUID),
		PeerAddress:    c.Link.PeerAddress,
		Transport: ble.TransportOptions{
			MaxFrameSize: c.Link.MaxFrameSize,
			NotifyQueue:  c.Link.NotifyQueue,
		},
	}
}

// ParseLogLevel maps a log_level value to a slog.Level. Unknown values map
// to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# mouseconnect configuration
# peer_address restricts which connected device is used (empty: the only one).
# exchange_timeout bounds each mtu/pull/push exchange (0: no limit).
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the written path, or "" if a file was already
// present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
