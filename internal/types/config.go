package types

// GridConfig represents the fixed geometry of the pixel grid
type GridConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// StoreConfig represents the configuration for the icon store
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ServerConfig represents the configuration for the HTTP/websocket server
type ServerConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	MaxConnections int    `json:"max_connections" yaml:"max_connections"`
	SendQueue      int    `json:"send_queue" yaml:"send_queue"`
}

// BridgeConfig represents the configuration for the frame poller
type BridgeConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	PollIntervalMS int  `json:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// GPIOConfig represents the shift register wiring for the GPIO sink
type GPIOConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Chip     string `json:"chip" yaml:"chip"`
	DataPin  int    `json:"data_pin" yaml:"data_pin"`
	ClockPin int    `json:"clock_pin" yaml:"clock_pin"`
	LatchPin int    `json:"latch_pin" yaml:"latch_pin"`
}

// MQTTConfig represents the configuration for the MQTT mirror
type MQTTConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Broker      string `json:"broker" yaml:"broker"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `json:"qos" yaml:"qos"`
	Encoding    string `json:"encoding" yaml:"encoding"`
}

// LogConfig represents the logging configuration
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}
