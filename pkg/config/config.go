// Package config provides configuration handling for the transport: defaults,
// YAML/JSON file loading, environment overrides and validation.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Config represents the complete transport configuration.
type Config struct {
	// Protocol contains the engine policy knobs.
	Protocol core.ProtocolConfig `json:"protocol" yaml:"protocol"`

	// Transport contains the UDP socket configuration.
	Transport core.TransportConfig `json:"transport" yaml:"transport"`

	// Logging contains the logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// File is the log file path. Empty keeps logging on stdout only.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Protocol: core.ProtocolConfig{
			FragmentSize:        1024,
			MaxFragments:        16,
			ReceiveBufferSize:   1500,
			IdleTimeoutMs:       5000,
			DisconnectTimeoutMs: 30000,
			HeartbeatIntervalMs: 1500,
			ReassemblyTimeoutMs: 5000,
			MaxRetries:          5,
			RTOMultiplier:       1.5,
			MinRTOMs:            200,
			MaxRTOMs:            60000,
		},
		Transport: core.TransportConfig{
			ListenAddress:   "0.0.0.0:34254",
			TickIntervalMs:  16,
			EventBufferSize: 1024,
			SendBufferSize:  1024,
			ReadBatchSize:   32,
			Debug:           false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func LoadFromEnv(config *Config) {
	if val := os.Getenv("RUDP_LISTEN_ADDRESS"); val != "" {
		config.Transport.ListenAddress = val
	}
	if val := os.Getenv("RUDP_TICK_INTERVAL_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Transport.TickIntervalMs = n
		}
	}
	if val := os.Getenv("RUDP_DEBUG"); val != "" {
		config.Transport.Debug = val == "true" || val == "1"
	}

	if val := os.Getenv("RUDP_FRAGMENT_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Protocol.FragmentSize = n
		}
	}
	if val := os.Getenv("RUDP_MAX_FRAGMENTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Protocol.MaxFragments = n
		}
	}
	if val := os.Getenv("RUDP_IDLE_TIMEOUT_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Protocol.IdleTimeoutMs = n
		}
	}
	if val := os.Getenv("RUDP_DISCONNECT_TIMEOUT_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Protocol.DisconnectTimeoutMs = n
		}
	}
	if val := os.Getenv("RUDP_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Protocol.MaxRetries = n
		}
	}

	if val := os.Getenv("LOGGING_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOGGING_FILE"); val != "" {
		config.Logging.File = val
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := net.ResolveUDPAddr("udp", c.Transport.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Transport.ListenAddress, err)
	}
	if c.Transport.TickIntervalMs <= 0 {
		return fmt.Errorf("invalid tick interval: %d", c.Transport.TickIntervalMs)
	}

	if c.Protocol.FragmentSize <= 0 {
		return fmt.Errorf("invalid fragment size: %d", c.Protocol.FragmentSize)
	}
	if c.Protocol.MaxFragments <= 0 || c.Protocol.MaxFragments > 255 {
		return fmt.Errorf("max fragments must be in 1..255, got %d", c.Protocol.MaxFragments)
	}
	if c.Protocol.ReceiveBufferSize < c.Protocol.FragmentSize {
		return fmt.Errorf("receive buffer (%d) smaller than fragment size (%d)",
			c.Protocol.ReceiveBufferSize, c.Protocol.FragmentSize)
	}
	if c.Protocol.DisconnectTimeoutMs <= c.Protocol.IdleTimeoutMs {
		return fmt.Errorf("disconnect timeout (%dms) must exceed idle timeout (%dms)",
			c.Protocol.DisconnectTimeoutMs, c.Protocol.IdleTimeoutMs)
	}
	if c.Protocol.MaxRetries <= 0 {
		return fmt.Errorf("invalid max retries: %d", c.Protocol.MaxRetries)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	var level logging.Level
	switch c.Logging.Level {
	case "debug":
		level = logging.DebugLevel
	case "info":
		level = logging.InfoLevel
	case "warn":
		level = logging.WarnLevel
	case "error":
		level = logging.ErrorLevel
	default:
		level = logging.InfoLevel
	}
	logging.SetLevel(level)

	if c.Logging.File != "" {
		dir := "."
		filename := c.Logging.File
		if lastSlash := strings.LastIndex(c.Logging.File, "/"); lastSlash != -1 {
			dir = c.Logging.File[:lastSlash]
			filename = c.Logging.File[lastSlash+1:]
		}
		if err := logging.EnableFileLogging(dir, filename, c.Logging.MaxSize, c.Logging.MaxBackups, c.Logging.MaxAge); err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML or JSON file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch {
	case strings.HasSuffix(path, ".json"):
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if lastSlash := strings.LastIndex(path, "/"); lastSlash != -1 {
		if err := os.MkdirAll(path[:lastSlash], 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
