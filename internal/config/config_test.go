package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codefionn/sqmean/internal/logger"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr() != "127.0.0.1:8001" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8001", cfg.Addr())
	}
	if cfg.DumpInterval.Std() != 10*time.Second {
		t.Errorf("DumpInterval = %s, want 10s", cfg.DumpInterval.Std())
	}
	if cfg.DrainTimeout.Std() != 5*time.Second {
		t.Errorf("DrainTimeout = %s, want 5s", cfg.DrainTimeout.Std())
	}
	if cfg.Level() != logger.LevelInfo {
		t.Errorf("Level() = %v, want INFO", cfg.Level())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"port": 9000, "dump_interval": "250ms", "log_level": "debug"}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.DumpInterval.Std() != 250*time.Millisecond {
		t.Errorf("DumpInterval = %s, want 250ms", cfg.DumpInterval.Std())
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want default", cfg.Host)
	}
	if cfg.WriteTimeout.Std() != 10*time.Second {
		t.Errorf("WriteTimeout = %s, want default 10s", cfg.WriteTimeout.Std())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":       `{"port": `,
		"bad duration": `{"drain_poll": "soon"}`,
		"numeric":      `{"drain_poll": 100}`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() succeeded on invalid config")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Port = 8123
	cfg.DrainTimeout = Duration(3 * time.Second)
	cfg.StatusAddr = "127.0.0.1:9100"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"drain_timeout": "3s"`) {
		t.Errorf("durations not saved as strings:\n%s", raw)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded config differs:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvDumpPath, "/tmp/other.dump")

	cfg := DefaultConfig()
	cfg.LogPath = "/var/log/sqmean.log"
	cfg.ApplyEnv()

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.DumpPath != "/tmp/other.dump" {
		t.Errorf("DumpPath = %q, want /tmp/other.dump", cfg.DumpPath)
	}
	if cfg.LogPath != "/var/log/sqmean.log" {
		t.Errorf("LogPath changed without %s set: %q", EnvLogPath, cfg.LogPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 70000 }},
		{"dump path", func(c *Config) { c.DumpPath = "" }},
		{"dump interval", func(c *Config) { c.DumpInterval = 0 }},
		{"drain poll", func(c *Config) { c.DrainPoll = 0 }},
		{"drain timeout", func(c *Config) { c.DrainTimeout = Duration(time.Millisecond) }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted invalid %s", tt.name)
			}
		})
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"log_level": "info"}`), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	if err := Watch(ctx, path, func(c *Config) { changes <- c }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"log_level": "debug"}`), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.LogLevel != "debug" {
			t.Errorf("reloaded LogLevel = %q, want debug", cfg.LogLevel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.json")
	if err := Watch(context.Background(), path, func(*Config) {}); err == nil {
		t.Error("Watch() succeeded on a missing directory")
	}
}
