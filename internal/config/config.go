package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

// ErrInvalidGrid is returned when the grid dimensions are not positive
var ErrInvalidGrid = errors.New("grid dimensions must be positive")

// Config represents the application configuration
type Config struct {
	Grid   types.GridConfig   `json:"grid" yaml:"grid"`
	Store  types.StoreConfig  `json:"store" yaml:"store"`
	Server types.ServerConfig `json:"server" yaml:"server"`
	Bridge types.BridgeConfig `json:"bridge" yaml:"bridge"`
	GPIO   types.GPIOConfig   `json:"gpio" yaml:"gpio"`
	MQTT   types.MQTTConfig   `json:"mqtt" yaml:"mqtt"`
	Log    types.LogConfig    `json:"log" yaml:"log"`
}

// LoadConfig loads the configuration from a file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Grid: types.GridConfig{
			Width:  13,
			Height: 8,
		},
		Store: types.StoreConfig{
			Path: "icons.json",
		},
		Server: types.ServerConfig{
			Addr:           ":7000",
			MaxConnections: 64,
			SendQueue:      16,
		},
		Bridge: types.BridgeConfig{
			Enabled:        false,
			PollIntervalMS: 50,
		},
		GPIO: types.GPIOConfig{
			Chip:     "gpiochip0",
			DataPin:  17,
			ClockPin: 27,
			LatchPin: 22,
		},
		MQTT: types.MQTTConfig{
			Broker:      "localhost:1883",
			ClientID:    "led-matrix-painter",
			TopicPrefix: "matrix",
			Encoding:    "json",
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, c.Grid.Width, c.Grid.Height)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.Bridge.PollIntervalMS <= 0 {
		return fmt.Errorf("bridge poll interval must be positive, got %dms", c.Bridge.PollIntervalMS)
	}
	switch c.MQTT.Encoding {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("unsupported mqtt encoding %q", c.MQTT.Encoding)
	}
	return nil
}
