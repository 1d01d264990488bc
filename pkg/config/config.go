// Package config loads the relay's TOML configuration file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/HugKitten/KRelay/pkg/capture"
	"github.com/HugKitten/KRelay/pkg/logging"
	"github.com/HugKitten/KRelay/pkg/messages"
	"github.com/HugKitten/KRelay/pkg/plugins"
	"github.com/HugKitten/KRelay/pkg/relay"
	"github.com/rs/zerolog"
)

// TOMLConfig represents the structure of the relay config file
type TOMLConfig struct {
	Relay    RelaySection    `toml:"relay"`
	Messages MessagesSection `toml:"messages"`
	Capture  CaptureSection  `toml:"capture"`
	Metrics  MetricsSection  `toml:"metrics"`
	Logging  LoggingSection  `toml:"logging"`
	Plugins  PluginsSection  `toml:"plugins"`
}

type RelaySection struct {
	ListenAddr         string `toml:"listen_addr"`
	WebSocketAddr      string `toml:"websocket_addr"`
	UpstreamAddr       string `toml:"upstream_addr"`
	DialTimeoutSeconds int    `toml:"dial_timeout_seconds"`
	MaxFrameSize       int    `toml:"max_frame_size"`
}

type MessagesSection struct {
	// TablePath is a Name:Id file; empty uses the built-in table
	TablePath string `toml:"table_path"`
}

type CaptureSection struct {
	Enabled         bool   `toml:"enabled"`
	DatabasePath    string `toml:"database_path"`
	FlushIntervalMs int    `toml:"flush_interval_ms"`
	BatchSize       int    `toml:"batch_size"`
}

type MetricsSection struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

type LoggingSection struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

type PluginsSection struct {
	BlockedWords []string `toml:"blocked_words"`
	Trace        []string `toml:"trace"`
	AutoPong     bool     `toml:"auto_pong"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	defaults := relay.DefaultConfig()
	return TOMLConfig{
		Relay: RelaySection{
			ListenAddr:         defaults.ListenAddr,
			UpstreamAddr:       defaults.UpstreamAddr,
			DialTimeoutSeconds: int(defaults.DialTimeout / time.Second),
			MaxFrameSize:       int(defaults.MaxFrameSize),
		},
		Capture: CaptureSection{
			Enabled:         false,
			DatabasePath:    "~/.krelay/captures.db",
			FlushIntervalMs: int(capture.DefaultOptions().FlushInterval / time.Millisecond),
			BatchSize:       capture.DefaultOptions().BatchSize,
		},
		Metrics: MetricsSection{
			Enabled:    true,
			ListenAddr: defaults.MetricsAddr,
		},
		Logging: LoggingSection{
			Level:  "info",
			Pretty: true,
		},
		Plugins: PluginsSection{
			BlockedWords: []string{},
			Trace:        []string{},
		},
	}
}

// ExpandPath expands a leading ~/ to the user's home directory
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		// Running without a writable config dir is fine
		_ = writeDefaultConfig(path, config)
		return config, nil
	}

	config := DefaultTOMLConfig()
	meta, err := toml.DecodeFile(path, &config)
	if err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return TOMLConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# KRelay Configuration
# This file was auto-generated with default values
# Edit as needed and restart the relay for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ToRelayConfig converts TOMLConfig to relay.Config, keeping defaults for
// unset values
func (c *TOMLConfig) ToRelayConfig() relay.Config {
	cfg := relay.DefaultConfig()

	if strings.TrimSpace(c.Relay.ListenAddr) != "" {
		cfg.ListenAddr = c.Relay.ListenAddr
	}
	cfg.WebSocketAddr = strings.TrimSpace(c.Relay.WebSocketAddr)

	if strings.TrimSpace(c.Relay.UpstreamAddr) != "" {
		cfg.UpstreamAddr = c.Relay.UpstreamAddr
	}

	if c.Relay.DialTimeoutSeconds > 0 {
		cfg.DialTimeout = time.Duration(c.Relay.DialTimeoutSeconds) * time.Second
	}

	if c.Relay.MaxFrameSize > 0 {
		cfg.MaxFrameSize = uint32(c.Relay.MaxFrameSize)
	}

	cfg.MetricsAddr = ""
	if c.Metrics.Enabled {
		cfg.MetricsAddr = relay.DefaultConfig().MetricsAddr
		if strings.TrimSpace(c.Metrics.ListenAddr) != "" {
			cfg.MetricsAddr = c.Metrics.ListenAddr
		}
	}

	return cfg
}

// ToPluginsConfig returns the plugin selection
func (c *TOMLConfig) ToPluginsConfig() plugins.Config {
	return plugins.Config{
		BlockedWords: c.Plugins.BlockedWords,
		Trace:        c.Plugins.Trace,
		AutoPong:     c.Plugins.AutoPong,
	}
}

// CaptureOptions returns the capture write buffer settings
func (c *TOMLConfig) CaptureOptions() capture.Options {
	opts := capture.DefaultOptions()
	if c.Capture.FlushIntervalMs > 0 {
		opts.FlushInterval = time.Duration(c.Capture.FlushIntervalMs) * time.Millisecond
	}
	if c.Capture.BatchSize > 0 {
		opts.BatchSize = c.Capture.BatchSize
	}
	return opts
}

// GetDatabasePath returns the capture database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	return ExpandPath(c.Capture.DatabasePath)
}

// LoggingOptions returns the logger settings
func (c *TOMLConfig) LoggingOptions() logging.Options {
	opts := logging.DefaultOptions(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Logging.Level); ok {
		opts.Level = lvl
	} else {
		opts.Level = zerolog.InfoLevel
	}
	opts.Pretty = c.Logging.Pretty
	return opts
}

// OpenTable returns the configured id table, or the built-in one
func (c *TOMLConfig) OpenTable() (io.ReadCloser, error) {
	if strings.TrimSpace(c.Messages.TablePath) == "" {
		return io.NopCloser(bytes.NewReader(messages.DefaultTable)), nil
	}
	path, err := ExpandPath(c.Messages.TablePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message table: %w", err)
	}
	return f, nil
}
