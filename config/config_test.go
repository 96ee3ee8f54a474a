package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Watchdog.Threshold != time.Second {
		t.Errorf("Threshold = %v, want 1s", cfg.Watchdog.Threshold)
	}
	if cfg.Watchdog.InspectionInterval != 0 {
		t.Errorf("InspectionInterval = %v, want 0 (derived)", cfg.Watchdog.InspectionInterval)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Feed.BroadcastThrottle != 100*time.Millisecond {
		t.Errorf("BroadcastThrottle = %v, want 100ms", cfg.Feed.BroadcastThrottle)
	}
	if cfg.Feed.HistorySize != 32 {
		t.Errorf("HistorySize = %d, want 32", cfg.Feed.HistorySize)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
watchdog:
  threshold: 2s
  inspection_interval: 250ms
  start_delay: 1s
  suppress_while_traced: true
  cpu_load_limit: 95
server:
  port: 9090
  host: 127.0.0.1
feed:
  broadcast_throttle: 50ms
  history_size: 8
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Watchdog.Threshold != 2*time.Second {
		t.Errorf("Threshold = %v, want 2s", cfg.Watchdog.Threshold)
	}
	if cfg.Watchdog.InspectionInterval != 250*time.Millisecond {
		t.Errorf("InspectionInterval = %v, want 250ms", cfg.Watchdog.InspectionInterval)
	}
	if cfg.Watchdog.StartDelay != time.Second {
		t.Errorf("StartDelay = %v, want 1s", cfg.Watchdog.StartDelay)
	}
	if !cfg.Watchdog.SuppressWhileTraced {
		t.Error("SuppressWhileTraced not set")
	}
	if cfg.Watchdog.CPULoadLimit != 95 {
		t.Errorf("CPULoadLimit = %v, want 95", cfg.Watchdog.CPULoadLimit)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Feed.BroadcastThrottle != 50*time.Millisecond || cfg.Feed.HistorySize != 8 {
		t.Errorf("feed = %+v", cfg.Feed)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"ZeroThreshold", "watchdog:\n  threshold: 0s\n"},
		{"NegativeThreshold", "watchdog:\n  threshold: -1s\n"},
		{"NegativeInterval", "watchdog:\n  inspection_interval: -100ms\n"},
		{"NegativeStartDelay", "watchdog:\n  start_delay: -1s\n"},
		{"CPULimitOutOfRange", "watchdog:\n  cpu_load_limit: 140\n"},
		{"PortOutOfRange", "server:\n  port: 70000\n"},
		{"NegativeHistory", "feed:\n  history_size: -1\n"},
		{"MalformedYAML", "watchdog: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
