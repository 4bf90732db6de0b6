package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".buildtrace.yml"

// Config is the top-level buildtrace configuration.
type Config struct {
	Trace    TraceConfig `yaml:"trace" toml:"trace"`
	LogLevel string      `yaml:"log_level" toml:"log_level"`
}

// TraceConfig holds defaults for trace generation. Command-line flags win
// when given explicitly.
type TraceConfig struct {
	ShowAll  bool   `yaml:"show_all" toml:"show_all"`
	Category string `yaml:"category" toml:"category"`
	Pretty   bool   `yaml:"pretty" toml:"pretty"`
	Output   string `yaml:"output" toml:"output"`
}

// Load reads configuration from a YAML file, or TOML when path ends in .toml.
// If path is empty, it tries the default file.
// Returns defaults if the default file doesn't exist; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Trace:    DefaultTraceConfig(),
		LogLevel: "warn",
	}
}

// DefaultTraceConfig returns production defaults.
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		Category: "targets",
	}
}
