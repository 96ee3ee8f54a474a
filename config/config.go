// Package config loads the YAML configuration for the stallwatch daemon
// and for applications embedding the watchdog.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Server   ServerConfig   `yaml:"server"`
	Feed     FeedConfig     `yaml:"feed"`
}

type WatchdogConfig struct {
	// Threshold is the minimum blocking duration that triggers a stall
	// report.
	Threshold time.Duration `yaml:"threshold"`

	// InspectionInterval is the tick interval. Zero derives the default
	// (threshold/5 clamped into [100ms, 500ms]).
	InspectionInterval time.Duration `yaml:"inspection_interval"`

	// StartDelay delays the first inspection tick after start.
	StartDelay time.Duration `yaml:"start_delay"`

	// SuppressWhileTraced suppresses reports while a debugger or other
	// ptrace tracer is attached.
	SuppressWhileTraced bool `yaml:"suppress_while_traced"`

	// CPULoadLimit suppresses reports while total host CPU utilisation
	// is at or above this percentage. Zero disables the exemption.
	CPULoadLimit float64 `yaml:"cpu_load_limit"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type FeedConfig struct {
	// BroadcastThrottle batches stall events arriving within this window
	// into one WebSocket message.
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`

	// HistorySize bounds the in-memory ring of recent events served to
	// newly connected clients.
	HistorySize int `yaml:"history_size"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Watchdog: WatchdogConfig{
			Threshold: time.Second,
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Feed: FeedConfig{
			BroadcastThrottle: 100 * time.Millisecond,
			HistorySize:       32,
		},
	}
}

// Validate rejects configurations the watchdog constructor would refuse,
// so a bad file fails at load time rather than at detector construction.
func (c *Config) Validate() error {
	if c.Watchdog.Threshold <= 0 {
		return fmt.Errorf("watchdog.threshold must be positive, got %v", c.Watchdog.Threshold)
	}
	if c.Watchdog.InspectionInterval < 0 {
		return fmt.Errorf("watchdog.inspection_interval must not be negative, got %v", c.Watchdog.InspectionInterval)
	}
	if c.Watchdog.StartDelay < 0 {
		return fmt.Errorf("watchdog.start_delay must not be negative, got %v", c.Watchdog.StartDelay)
	}
	if c.Watchdog.CPULoadLimit < 0 || c.Watchdog.CPULoadLimit > 100 {
		return fmt.Errorf("watchdog.cpu_load_limit must be within [0, 100], got %v", c.Watchdog.CPULoadLimit)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Feed.BroadcastThrottle < 0 {
		return fmt.Errorf("feed.broadcast_throttle must not be negative, got %v", c.Feed.BroadcastThrottle)
	}
	if c.Feed.HistorySize < 0 {
		return fmt.Errorf("feed.history_size must not be negative, got %d", c.Feed.HistorySize)
	}
	return nil
}
