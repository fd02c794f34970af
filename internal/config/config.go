// Package config loads the YAML configuration shared by the kiosk, the
// agent and the CLI
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackendSection configures the Idento REST API
type BackendSection struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	// Timeout uses Go duration format, e.g. "15s"
	Timeout string `yaml:"timeout"`
}

// AgentSection configures the local printer/scanner agent. URL is used by
// clients; the rest is read by the agent itself.
type AgentSection struct {
	URL             string   `yaml:"url"`
	Port            int      `yaml:"port"`
	DataDir         string   `yaml:"data_dir"`
	MonitorInterval string   `yaml:"monitor_interval"`
	PrintRetries    int      `yaml:"print_retries"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// KioskSection configures the check-in screen
type KioskSection struct {
	EventID         string `yaml:"event_id"`
	DismissAfter    string `yaml:"dismiss_after"`
	PollInterval    string `yaml:"poll_interval"`
	ScanTestTimeout string `yaml:"scan_test_timeout"`
	SettingsFile    string `yaml:"settings_file"`
	JournalFile     string `yaml:"journal_file"`
}

// LogSection configures logrus
type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
}

// Config is the whole configuration file
type Config struct {
	Backend BackendSection `yaml:"backend"`
	Agent   AgentSection   `yaml:"agent"`
	Kiosk   KioskSection   `yaml:"kiosk"`
	Log     LogSection     `yaml:"log"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Backend: BackendSection{
			URL:     "http://localhost:8080",
			Timeout: "15s",
		},
		Agent: AgentSection{
			URL:             "http://localhost:12212",
			Port:            12212,
			DataDir:         defaultDataDir(),
			MonitorInterval: "2s",
			PrintRetries:    3,
			CORSOrigins:     []string{"*"},
		},
		Kiosk: KioskSection{
			DismissAfter:    "5s",
			PollInterval:    "500ms",
			ScanTestTimeout: "30s",
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "idento")
}

// Load reads .env (if present), the YAML file at path (if non-empty) and
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("IDENTO_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("IDENTO_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("IDENTO_AGENT_URL"); v != "" {
		cfg.Agent.URL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		cfg.Agent.Port = p
	}
	if v := os.Getenv("IDENTO_EVENT_ID"); v != "" {
		cfg.Kiosk.EventID = v
	}
	if v := os.Getenv("IDENTO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks URLs, ports and durations
func (c Config) Validate() error {
	if err := validateURL("backend.url", c.Backend.URL); err != nil {
		return err
	}
	if err := validateURL("agent.url", c.Agent.URL); err != nil {
		return err
	}
	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		return fmt.Errorf("agent.port must be between 1 and 65535, got %d", c.Agent.Port)
	}
	if c.Agent.PrintRetries < 0 {
		return errors.New("agent.print_retries must not be negative")
	}

	durations := map[string]string{
		"backend.timeout":         c.Backend.Timeout,
		"agent.monitor_interval":  c.Agent.MonitorInterval,
		"kiosk.dismiss_after":     c.Kiosk.DismissAfter,
		"kiosk.poll_interval":     c.Kiosk.PollInterval,
		"kiosk.scan_test_timeout": c.Kiosk.ScanTestTimeout,
	}
	for name, v := range durations {
		if _, err := parseDuration(v, 0); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", name, raw)
	}
	return nil
}

// parseDuration parses a Go duration; empty yields def
func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}

func mustDuration(v string, def time.Duration) time.Duration {
	d, err := parseDuration(v, def)
	if err != nil || d == 0 {
		return def
	}
	return d
}

// BackendTimeout returns backend.timeout
func (c Config) BackendTimeout() time.Duration {
	return mustDuration(c.Backend.Timeout, 15*time.Second)
}

// MonitorInterval returns agent.monitor_interval
func (c Config) MonitorInterval() time.Duration {
	return mustDuration(c.Agent.MonitorInterval, 2*time.Second)
}

// DismissAfter returns kiosk.dismiss_after
func (c Config) DismissAfter() time.Duration {
	return mustDuration(c.Kiosk.DismissAfter, 5*time.Second)
}

// PollInterval returns kiosk.poll_interval
func (c Config) PollInterval() time.Duration {
	return mustDuration(c.Kiosk.PollInterval, 500*time.Millisecond)
}

// ScanTestTimeout returns kiosk.scan_test_timeout
func (c Config) ScanTestTimeout() time.Duration {
	return mustDuration(c.Kiosk.ScanTestTimeout, 30*time.Second)
}

// SettingsFile returns the kiosk settings path, defaulting into DataDir
func (c Config) SettingsFile() string {
	if c.Kiosk.SettingsFile != "" {
		return c.Kiosk.SettingsFile
	}
	return filepath.Join(c.Agent.DataDir, "kiosk.json")
}

// JournalFile returns the journal database path, defaulting into DataDir
func (c Config) JournalFile() string {
	if c.Kiosk.JournalFile != "" {
		return c.Kiosk.JournalFile
	}
	return filepath.Join(c.Agent.DataDir, "journal.db")
}

// RegistryFile is where the agent keeps printer ids, names and scanners
func (c Config) RegistryFile() string {
	return filepath.Join(c.Agent.DataDir, "agent_registry.json")
}
