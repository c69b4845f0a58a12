package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	xdgAppName = "twsync"
	configFile = "config.yaml"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "TWSYNC_CONFIG"

	DefaultCalendar    = "Tasks"
	DefaultTaskCommand = "task"
	DefaultSchedule    = "@every 15m"
	DefaultLogLevel    = "info"
)

type Config struct {
	Calendar    string `yaml:"calendar"`
	DataDir     string `yaml:"data_dir,omitempty"`
	TaskCommand string `yaml:"task_command,omitempty"`
	Schedule    string `yaml:"schedule,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
}

// Dir returns ~/.config/twsync.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Calendar == "" {
		c.Calendar = DefaultCalendar
	}
	if c.TaskCommand == "" {
		c.TaskCommand = DefaultTaskCommand
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DataDir == "" {
		if dir, err := Dir(); err == nil {
			c.DataDir = dir
		}
	}
}

func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path; a missing file yields Default().
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Update applies fn to the config file as written, without defaults or
// overrides, and saves the result.
func Update(fn func(*Config)) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return UpdateFile(path, fn)
}

func UpdateFile(path string, fn func(*Config)) error {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to decode config: %w", err)
		}
	}
	fn(&cfg)
	return SaveFile(path, &cfg)
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
