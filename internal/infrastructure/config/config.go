// Package config loads client configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	Server   ServerConfig
	Realtime RealtimeConfig
	Logging  LogConfig
}

// ServerConfig holds backend endpoint configuration.
type ServerConfig struct {
	BaseURL string `envconfig:"DOCCHAT_URL" default:"http://localhost:8000"`
	WSPath  string `envconfig:"DOCCHAT_WS_PATH" default:"/ws"`
	Token   string `envconfig:"DOCCHAT_TOKEN"`
}

// RealtimeConfig holds connection lifecycle tuning.
type RealtimeConfig struct {
	MaxAttempts      int           `envconfig:"DOCCHAT_MAX_ATTEMPTS" default:"5"`
	BaseDelay        time.Duration `envconfig:"DOCCHAT_BASE_DELAY" default:"1s"`
	MaxDelay         time.Duration `envconfig:"DOCCHAT_MAX_DELAY" default:"30s"`
	ConnectTimeout   time.Duration `envconfig:"DOCCHAT_CONNECT_TIMEOUT" default:"30s"`
	HandshakeTimeout time.Duration `envconfig:"DOCCHAT_HANDSHAKE_TIMEOUT" default:"10s"`
	PingInterval     time.Duration `envconfig:"DOCCHAT_PING_INTERVAL" default:"30s"`
	RejoinTimeout    time.Duration `envconfig:"DOCCHAT_REJOIN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"DOCCHAT_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"DOCCHAT_LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			WSPath:  "/ws",
		},
		Realtime: RealtimeConfig{
			MaxAttempts:      5,
			BaseDelay:        time.Second,
			MaxDelay:         30 * time.Second,
			ConnectTimeout:   30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     30 * time.Second,
			RejoinTimeout:    10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// WSEndpoint derives the websocket URL from the HTTP base URL.
func (c *Config) WSEndpoint() string {
	url := c.Server.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + c.Server.WSPath
}
