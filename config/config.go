package config

import (
	"fmt"
	"os"

	"github.com/jobala/petrosql/buffer"
	"github.com/jobala/petrosql/logger"
	"gopkg.in/yaml.v3"
)

// Default runs an in-memory database with info logs on stderr and no
// metrics endpoint.
func Default() Config {
	return Config{
		CacheSize: buffer.DEFAULT_CAPACITY,
		Log: logger.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.CacheSize <= 0 {
		return cfg, fmt.Errorf("config %s: cache_size must be positive", path)
	}
	return cfg, nil
}

type Config struct {
	// Database file. Empty keeps everything in memory.
	Path string `yaml:"path"`
	// Format a new database at Path instead of opening an existing one.
	Create bool `yaml:"create"`
	// Node cache frames per table index.
	CacheSize   int           `yaml:"cache_size"`
	Log         logger.Config `yaml:"log"`
	MetricsAddr string        `yaml:"metrics_addr"`
}
