// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the vestat TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a string ("500ms") in TOML.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the complete configuration file.
type Config struct {
	Serial    SerialConfig    `toml:"serial"`
	WebSocket WebSocketConfig `toml:"websocket"`
	Decoder   DecoderConfig   `toml:"decoder"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
}

// SerialConfig selects the local VE.Direct port.
type SerialConfig struct {
	Device   string `toml:"device"`
	Baudrate int    `toml:"baudrate"`
}

// WebSocketConfig selects a remote serial bridge.
type WebSocketConfig struct {
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
}

// DecoderConfig holds protocol timing.
type DecoderConfig struct {
	InterByteTimeout Duration `toml:"inter_byte_timeout"`
	MaxAge           Duration `toml:"max_age"`
	PollInterval     Duration `toml:"poll_interval"`
	LimitInterval    Duration `toml:"limit_interval"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	ListenAddress    string   `toml:"listen_address"`
	SnapshotInterval Duration `toml:"snapshot_interval"`
}

// LumberjackConfig configures log file rotation.
type LumberjackConfig struct {
	Filename   string `toml:"filename"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// LoggingConfig configures the diagnostic logger. Command output is not
// affected.
type LoggingConfig struct {
	Level  string           `toml:"level"`  // debug, info, warn, error
	Format string           `toml:"format"` // console or json
	File   LumberjackConfig `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:   "",
			Baudrate: 19200,
		},
		Decoder: DecoderConfig{
			InterByteTimeout: Duration{500 * time.Millisecond},
			MaxAge:           Duration{10 * time.Second},
			PollInterval:     Duration{5 * time.Second},
			LimitInterval:    Duration{time.Minute},
		},
		Server: ServerConfig{
			ListenAddress:    "127.0.0.1:9100",
			SnapshotInterval: Duration{time.Second},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			File: LumberjackConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
	}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vestat", "config.toml")
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default value; unknown keys are an error. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault creates path with the default configuration. An existing
// file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(Default())
}

// Validate checks values that would make the tool misbehave.
func (c *Config) Validate() error {
	if c.Serial.Baudrate <= 0 {
		return fmt.Errorf("serial.baudrate must be positive, got %d", c.Serial.Baudrate)
	}
	if c.Decoder.InterByteTimeout.Duration < 0 {
		return fmt.Errorf("decoder.inter_byte_timeout must not be negative")
	}
	if c.Decoder.MaxAge.Duration <= 0 {
		return fmt.Errorf("decoder.max_age must be positive")
	}
	if c.Decoder.PollInterval.Duration <= 0 {
		return fmt.Errorf("decoder.poll_interval must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
