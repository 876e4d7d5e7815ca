// Package config loads the broker's YAML configuration file and fills
// in defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is loaded from YAML (battle-tested parser). Defaults are
// applied in Load after parsing.
type Config struct {
	ListenPlain struct {
		Address string `yaml:"address"`
	} `yaml:"listen_plain"`

	ListenTLS struct {
		Address  string `yaml:"address"`
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"listen_tls"`

	WorkerThreads         int    `yaml:"worker_threads"`
	MaxKeepAliveSeconds   int    `yaml:"max_keepalive_seconds"`
	MaxInflightPerSession int    `yaml:"max_inflight_per_session"`
	AllowAnonymous        bool   `yaml:"allow_anonymous"`
	LogLevel              string `yaml:"log_level"`
	RetainedBackend       string `yaml:"retained_backend"`
	MetricsAddress        string `yaml:"metrics_address"`

	Pebble struct {
		Path string `yaml:"path"`
	} `yaml:"pebble"`

	Redis struct {
		Address string `yaml:"address"`
	} `yaml:"redis"`
}

// Load reads and parses the YAML file at path, then fills in defaults
// for any field left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenPlain.Address == "" && c.ListenTLS.Address == "" {
		c.ListenPlain.Address = ":1883"
	}
	if c.WorkerThreads <= 0 {
		c.WorkerThreads = runtime.GOMAXPROCS(0)
	}
	if c.MaxKeepAliveSeconds <= 0 {
		c.MaxKeepAliveSeconds = 3600
	}
	if c.MaxInflightPerSession <= 0 {
		c.MaxInflightPerSession = 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RetainedBackend == "" {
		c.RetainedBackend = "memory"
	}
}

func (c *Config) validate() error {
	switch c.RetainedBackend {
	case "memory", "pebble", "redis":
	default:
		return fmt.Errorf("retained_backend must be memory, pebble or redis, got %q", c.RetainedBackend)
	}
	if c.RetainedBackend == "pebble" && c.Pebble.Path == "" {
		return fmt.Errorf("pebble.path is required when retained_backend is pebble")
	}
	if c.RetainedBackend == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when retained_backend is redis")
	}
	if c.ListenTLS.Address != "" && (c.ListenTLS.CertFile == "" || c.ListenTLS.KeyFile == "") {
		return fmt.Errorf("listen_tls requires both cert_file and key_file")
	}
	return nil
}
