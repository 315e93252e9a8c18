// Package model defines the configuration structure loaded from configs/config.yml.
package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Global     GlobalConfig     `yaml:"global"`
	Connection ConnectionConfig `yaml:"connection"`
	Control    ControlConfig    `yaml:"control"`
	Render     RenderConfig     `yaml:"render"`
	Status     StatusConfig     `yaml:"status"`
	Collab     CollabConfig     `yaml:"collab"`
	Gamepad    GamepadConfig    `yaml:"gamepad"`
	Preview    PreviewConfig    `yaml:"preview"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GlobalConfig defines shared defaults.
type GlobalConfig struct {
	WireFormat string `yaml:"wire_format"` // json or msgpack
	Username   string `yaml:"username"`    // sent in web_hello
}

// ConnectionConfig describes the controller channel.
type ConnectionConfig struct {
	Endpoint           string `yaml:"endpoint"`
	ReconnectDelayMs   int    `yaml:"reconnect_delay_ms"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"`
	Token              string `yaml:"token"`          // bearer token from the login flow
	SessionCookie      string `yaml:"session_cookie"` // raw Cookie header value
}

// ControlConfig tunes the command stream.
type ControlConfig struct {
	RepeatIntervalMs int `yaml:"repeat_interval_ms"`
	SpeedMin         int `yaml:"speed_min"`
	SpeedMax         int `yaml:"speed_max"`
	SpeedInitial     int `yaml:"speed_initial"`
	SpeedStep        int `yaml:"speed_step"`
	KeyReleaseMs     int `yaml:"key_release_ms"` // terminal input has no key-up events
}

// RenderConfig is the fixed display surface.
type RenderConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// StatusConfig tunes the status line.
type StatusConfig struct {
	IdleText      string `yaml:"idle_text"`
	DimAfterMs    int    `yaml:"dim_after_ms"`
	RevertAfterMs int    `yaml:"revert_after_ms"`
	DesktopNotify bool   `yaml:"desktop_notify"`
}

// CollabConfig points at the gallery / notification REST service.
type CollabConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	TimeoutMs int    `yaml:"timeout_ms"`
	CachePath string `yaml:"cache_path"`
}

// GamepadConfig is an optional serial input device.
type GamepadConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// PreviewConfig is the optional local HTTP preview server. Empty Addr disables it.
type PreviewConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	DefaultEndpoint       = "ws://localhost:8765/"
	DefaultReconnectDelay = 3000
	DefaultRepeatInterval = 150
	DefaultIdleText       = "System ready"
)

// DefaultConfig returns a configuration that works against a local controller.
func DefaultConfig() Config {
	return Config{
		Global: GlobalConfig{WireFormat: "json", Username: "operator"},
		Connection: ConnectionConfig{
			Endpoint:           DefaultEndpoint,
			ReconnectDelayMs:   DefaultReconnectDelay,
			HandshakeTimeoutMs: 5000,
		},
		Control: ControlConfig{
			RepeatIntervalMs: DefaultRepeatInterval,
			SpeedMin:         0,
			SpeedMax:         100,
			SpeedInitial:     50,
			SpeedStep:        10,
			KeyReleaseMs:     600,
		},
		Render: RenderConfig{Width: 640, Height: 480},
		Status: StatusConfig{IdleText: DefaultIdleText, DimAfterMs: 3000, RevertAfterMs: 5000},
		Collab: CollabConfig{
			BaseURL:   "http://localhost:5000",
			TimeoutMs: 10000,
			CachePath: filepath.Join("tmp", "gallery.db"),
		},
		Gamepad: GamepadConfig{Baud: 9600},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path on top of DefaultConfig.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// FillMissingDefaults replaces zero values that have no sensible zero meaning.
func (c *Config) FillMissingDefaults() {
	d := DefaultConfig()
	if c.Global.WireFormat == "" {
		c.Global.WireFormat = d.Global.WireFormat
	}
	if c.Connection.Endpoint == "" {
		c.Connection.Endpoint = d.Connection.Endpoint
	}
	if c.Connection.ReconnectDelayMs <= 0 {
		c.Connection.ReconnectDelayMs = d.Connection.ReconnectDelayMs
	}
	if c.Connection.HandshakeTimeoutMs <= 0 {
		c.Connection.HandshakeTimeoutMs = d.Connection.HandshakeTimeoutMs
	}
	if c.Control.RepeatIntervalMs <= 0 {
		c.Control.RepeatIntervalMs = d.Control.RepeatIntervalMs
	}
	if c.Control.SpeedStep <= 0 {
		c.Control.SpeedStep = d.Control.SpeedStep
	}
	if c.Control.KeyReleaseMs <= 0 {
		c.Control.KeyReleaseMs = d.Control.KeyReleaseMs
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		c.Render = d.Render
	}
	if c.Status.IdleText == "" {
		c.Status.IdleText = d.Status.IdleText
	}
	if c.Status.DimAfterMs <= 0 {
		c.Status.DimAfterMs = d.Status.DimAfterMs
	}
	if c.Status.RevertAfterMs <= 0 {
		c.Status.RevertAfterMs = d.Status.RevertAfterMs
	}
	if c.Collab.TimeoutMs <= 0 {
		c.Collab.TimeoutMs = d.Collab.TimeoutMs
	}
	if c.Gamepad.Baud <= 0 {
		c.Gamepad.Baud = d.Gamepad.Baud
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch strings.ToLower(c.Global.WireFormat) {
	case "json", "msgpack":
	default:
		return fmt.Errorf("unsupported wire_format %q", c.Global.WireFormat)
	}
	u, err := url.Parse(c.Connection.Endpoint)
	if err != nil {
		return fmt.Errorf("connection endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("connection endpoint must use ws or wss, got %q", u.Scheme)
	}
	if c.Control.SpeedMin > c.Control.SpeedMax {
		return errors.New("speed_min must not exceed speed_max")
	}
	if c.Control.SpeedInitial < c.Control.SpeedMin || c.Control.SpeedInitial > c.Control.SpeedMax {
		return errors.New("speed_initial outside [speed_min, speed_max]")
	}
	if c.Status.DimAfterMs >= c.Status.RevertAfterMs {
		return errors.New("status dim_after_ms must be shorter than revert_after_ms")
	}
	return nil
}

// ReconnectDelay returns the fixed reconnect delay.
func (c ConnectionConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// HandshakeTimeout returns the websocket handshake timeout.
func (c ConnectionConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMs) * time.Millisecond
}

// RepeatInterval returns the direction heartbeat cadence.
func (c ControlConfig) RepeatInterval() time.Duration {
	return time.Duration(c.RepeatIntervalMs) * time.Millisecond
}

// KeyRelease returns how long a terminal key counts as held without a repeat.
func (c ControlConfig) KeyRelease() time.Duration {
	return time.Duration(c.KeyReleaseMs) * time.Millisecond
}

// DimAfter returns the delay before a status line dims.
func (c StatusConfig) DimAfter() time.Duration {
	return time.Duration(c.DimAfterMs) * time.Millisecond
}

// RevertAfter returns the delay, from the report, before a status line reverts to idle.
func (c StatusConfig) RevertAfter() time.Duration {
	return time.Duration(c.RevertAfterMs) * time.Millisecond
}

// Timeout returns the per-request collaborator timeout.
func (c CollabConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
