package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/sqmean/internal/consts"
	"github.com/codefionn/sqmean/internal/logger"
	"github.com/codefionn/sqmean/internal/paths"
)

// Environment variables that override the file.
const (
	EnvLogLevel = "SQMEAN_LOG_LEVEL"
	EnvLogPath  = "SQMEAN_LOG_PATH"
	EnvDumpPath = "SQMEAN_DUMP_PATH"
)

// Duration is a time.Duration encoded as a Go duration string ("10s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the server configuration
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	DumpPath     string   `json:"dump_path"`
	DumpInterval Duration `json:"dump_interval"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"log_path"`  // empty logs to stderr

	WriteTimeout      Duration `json:"write_timeout"`
	DrainPoll         Duration `json:"drain_poll"`
	DrainTimeout      Duration `json:"drain_timeout"`
	DumperStopTimeout Duration `json:"dumper_stop_timeout"`

	StatusAddr string `json:"status_addr,omitempty"` // empty disables the status endpoint
	PIDPath    string `json:"pid_path"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Host:              consts.DefaultHost,
		Port:              consts.DefaultPort,
		DumpPath:          paths.DumpFile(),
		DumpInterval:      Duration(consts.DumpInterval),
		LogLevel:          "info",
		WriteTimeout:      Duration(consts.WriteTimeout),
		DrainPoll:         Duration(consts.DrainPollInterval),
		DrainTimeout:      Duration(consts.DrainTimeout),
		DumperStopTimeout: Duration(consts.DumperStopTimeout),
		PIDPath:           paths.PIDFile(),
	}
}

// Load reads the configuration at path over the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return config, nil
}

// ApplyEnv overrides fields from SQMEAN_* environment variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvLogPath); ok {
		c.LogPath = v
	}
	if v, ok := os.LookupEnv(EnvDumpPath); ok {
		c.DumpPath = v
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DumpPath == "" {
		return errors.New("dump_path must be set")
	}
	if c.DumpInterval <= 0 {
		return errors.New("dump_interval must be positive")
	}
	if c.DrainPoll <= 0 {
		return errors.New("drain_poll must be positive")
	}
	if c.DrainTimeout < c.DrainPoll {
		return fmt.Errorf("drain_timeout %s is shorter than drain_poll %s", c.DrainTimeout.Std(), c.DrainPoll.Std())
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "none":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the parsed log level.
func (c *Config) Level() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return paths.ConfigFile()
}
