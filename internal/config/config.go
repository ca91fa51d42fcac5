// Package config handles configuration loading from YAML files, environment
// variables, and command-line flags.
// Configuration precedence: CLI flags > environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ps2mqtt/agent/internal/metrics"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "60s", "5m" as well as bare integers,
// which are interpreted as seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
	if secs, err := strconv.Atoi(value.Value); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all agent configuration. It is immutable after startup and
// passed by reference to every component.
type Config struct {
	MQTTServer       string   `yaml:"mqtt_server"`
	MQTTPort         int      `yaml:"mqtt_port"`
	MQTTUsername     string   `yaml:"mqtt_username,omitempty"`
	MQTTPassword     string   `yaml:"mqtt_password,omitempty"`
	MQTTBaseTopic    string   `yaml:"mqtt_base_topic"`
	HADiscoverPrefix string   `yaml:"ha_discover_prefix"`
	HAStatusTopic    string   `yaml:"ha_status_topic"`
	Period           Duration `yaml:"period"`
	StoragePaths     string   `yaml:"storage_paths"`
	LogLevel         string   `yaml:"log_level"`
	LogFile          string   `yaml:"log_file,omitempty"`
}

// Default returns the default configuration. The base topic incorporates
// the host name so multiple hosts can share one broker out of the box.
func Default() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		MQTTServer:       "localhost",
		MQTTPort:         1883,
		MQTTBaseTopic:    "ps2mqtt/" + metrics.Slug(hostname),
		HADiscoverPrefix: "homeassistant",
		HAStatusTopic:    "homeassistant/status",
		Period:           Duration{60 * time.Second},
		StoragePaths:     "/",
		LogLevel:         "info",
	}
}

// Flags holds values from command-line flags. Zero values are treated as
// "not set" and skipped during the merge.
type Flags struct {
	MQTTServer       string
	MQTTPort         int
	MQTTUsername     string
	MQTTPassword     string
	MQTTBaseTopic    string
	HADiscoverPrefix string
	HAStatusTopic    string
	PeriodSeconds    int
	StoragePaths     string
	LogLevel         string
	LogFile          string
}

// Load reads configuration from a YAML file and merges with defaults.
// A missing file is not an error — defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > YAML file > defaults.
func LoadLayered(flags Flags, path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyFlags(cfg, flags)

	return cfg, nil
}

// Write serializes the config to a YAML file at the given path, creating
// parent directories if needed. Combined with LoadLayered this gives the
// config file read-modify-write semantics: flag and env overrides become
// durable on the next run, and the file is created on first run.
func Write(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. MQTT_HOST is the documented variable; MQTT_SERVER is
// accepted as an alias.
func applyEnvOverrides(cfg *Config) {
	for _, key := range []string{"MQTT_HOST", "MQTT_SERVER"} {
		if v := os.Getenv(key); v != "" {
			cfg.MQTTServer = v
			break
		}
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTTPort = port
		}
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTTUsername = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTTPassword = v
	}
	if v := os.Getenv("MQTT_BASE_TOPIC"); v != "" {
		cfg.MQTTBaseTopic = v
	}
	if v := os.Getenv("HA_DISCOVER_PREFIX"); v != "" {
		cfg.HADiscoverPrefix = v
	}
	if v := os.Getenv("HA_STATUS_TOPIC"); v != "" {
		cfg.HAStatusTopic = v
	}
	if v := os.Getenv("PERIOD"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Period = Duration{time.Duration(secs) * time.Second}
		}
	}
	if v := os.Getenv("STORAGE_PATHS"); v != "" {
		cfg.StoragePaths = v
	}
	if v := os.Getenv("LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// applyFlags applies command-line flag overrides (highest precedence).
func applyFlags(cfg *Config, f Flags) {
	if f.MQTTServer != "" {
		cfg.MQTTServer = f.MQTTServer
	}
	if f.MQTTPort != 0 {
		cfg.MQTTPort = f.MQTTPort
	}
	if f.MQTTUsername != "" {
		cfg.MQTTUsername = f.MQTTUsername
	}
	if f.MQTTPassword != "" {
		cfg.MQTTPassword = f.MQTTPassword
	}
	if f.MQTTBaseTopic != "" {
		cfg.MQTTBaseTopic = f.MQTTBaseTopic
	}
	if f.HADiscoverPrefix != "" {
		cfg.HADiscoverPrefix = f.HADiscoverPrefix
	}
	if f.HAStatusTopic != "" {
		cfg.HAStatusTopic = f.HAStatusTopic
	}
	if f.PeriodSeconds != 0 {
		cfg.Period = Duration{time.Duration(f.PeriodSeconds) * time.Second}
	}
	if f.StoragePaths != "" {
		cfg.StoragePaths = f.StoragePaths
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MQTTServer == "" {
		return fmt.Errorf("mqtt_server is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("mqtt_port %d out of range", c.MQTTPort)
	}
	if c.MQTTBaseTopic == "" {
		return fmt.Errorf("mqtt_base_topic is required")
	}
	if c.HADiscoverPrefix == "" {
		return fmt.Errorf("ha_discover_prefix is required")
	}
	if c.Period.Duration <= 0 {
		return fmt.Errorf("period must be positive (got %v)", c.Period.Duration)
	}
	return nil
}
