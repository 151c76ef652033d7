package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/blebridge/internal/console"
	"github.com/banshee-data/blebridge/internal/serialport"
)

// DefaultSerialPort is the console UART on the bridge host.
const DefaultSerialPort = "/dev/ttyS0"

// BridgeConfig is the on-disk configuration of the bridge. Every field is
// optional; the Get* methods fall back to the defaults for anything unset, so
// a partial file is valid.
type BridgeConfig struct {
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	// Durations are strings like "100ms".
	PollInterval    *string `json:"poll_interval,omitempty"`
	SentinelTimeout *string `json:"sentinel_timeout,omitempty"`
	LineTimeout     *string `json:"line_timeout,omitempty"`
	FrameTimeout    *string `json:"frame_timeout,omitempty"`
	// ReadyTimeout bounds the wait for RDY before a CHE burst; empty waits
	// forever.
	ReadyTimeout *string `json:"ready_timeout,omitempty"`

	TranscriptPath *string `json:"transcript_path,omitempty"`
	DebugListen    *string `json:"debug_listen,omitempty"`
	Loopback       *bool   `json:"loopback,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

// LoadBridgeConfig loads a BridgeConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &BridgeConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type durationField struct {
	name     string
	value    *string
	positive bool
}

func (c *BridgeConfig) durationFields() []durationField {
	return []durationField{
		{"poll_interval", c.PollInterval, true},
		{"sentinel_timeout", c.SentinelTimeout, true},
		{"line_timeout", c.LineTimeout, true},
		{"frame_timeout", c.FrameTimeout, true},
		{"ready_timeout", c.ReadyTimeout, false},
	}
}

// Validate checks that the configuration values are valid.
func (c *BridgeConfig) Validate() error {
	for _, f := range c.durationFields() {
		if f.value == nil || *f.value == "" {
			continue
		}
		d, err := time.ParseDuration(*f.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", f.name, *f.value, err)
		}
		if f.positive && d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", f.name, d)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %v", f.name, d)
		}
	}

	if c.SerialPort != nil && *c.SerialPort == "" {
		return fmt.Errorf("serial_port must not be empty")
	}
	if _, err := c.PortOptions().Normalize(); err != nil {
		return fmt.Errorf("invalid serial options: %w", err)
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetSerialPort returns the serial device path or the default.
func (c *BridgeConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return DefaultSerialPort
	}
	return *c.SerialPort
}

// PortOptions returns the serial line settings. Unset values stay zero and
// are defaulted by serialport.PortOptions.Normalize.
func (c *BridgeConfig) PortOptions() serialport.PortOptions {
	var opts serialport.PortOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetPollInterval returns the delay between console polls.
func (c *BridgeConfig) GetPollInterval() time.Duration {
	return durationOr(c.PollInterval, 100*time.Millisecond)
}

// Timeouts returns the console timeouts, starting from console.DefaultTimeouts.
func (c *BridgeConfig) Timeouts() console.Timeouts {
	def := console.DefaultTimeouts()
	return console.Timeouts{
		Sentinel: durationOr(c.SentinelTimeout, def.Sentinel),
		Line:     durationOr(c.LineTimeout, def.Line),
		Frame:    durationOr(c.FrameTimeout, def.Frame),
		Ready:    durationOr(c.ReadyTimeout, def.Ready),
	}
}

// GetTranscriptPath returns the sqlite transcript path; empty disables it.
func (c *BridgeConfig) GetTranscriptPath() string {
	if c.TranscriptPath == nil {
		return ""
	}
	return *c.TranscriptPath
}

// GetDebugListen returns the debug HTTP listen address; empty disables it.
func (c *BridgeConfig) GetDebugListen() string {
	if c.DebugListen == nil {
		return ""
	}
	return *c.DebugListen
}

// GetLoopback reports whether the stub radio echoes written frames back.
func (c *BridgeConfig) GetLoopback() bool {
	if c.Loopback == nil {
		return false
	}
	return *c.Loopback
}

// SetSerialPort, SetBaudRate and friends let command line flags override
// values loaded from the file.

func (c *BridgeConfig) SetSerialPort(v string)     { c.SerialPort = ptrString(v) }
func (c *BridgeConfig) SetBaudRate(v int)          { c.BaudRate = ptrInt(v) }
func (c *BridgeConfig) SetTranscriptPath(v string) { c.TranscriptPath = ptrString(v) }
func (c *BridgeConfig) SetDebugListen(v string)    { c.DebugListen = ptrString(v) }
func (c *BridgeConfig) SetLoopback(v bool)         { c.Loopback = ptrBool(v) }
