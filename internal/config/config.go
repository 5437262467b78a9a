// ABOUTME: Configuration loading and management for the rpcmux server
// ABOUTME: Supports YAML files with XDG path expansion and sane defaults

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/harper/rpcmux/internal/xdg"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	// InboundBuffer is the per-connection queue depth for requests
	// waiting on a handler. Zero means the built-in default.
	InboundBuffer int `mapstructure:"inbound_buffer" yaml:"inbound_buffer"`
}

type JournalConfig struct {
	// Path to the SQLite frame journal. Empty disables journaling.
	Path string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8810,
		},
		Journal: JournalConfig{
			Path: "",
		},
	}
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8810)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server.port: %d", cfg.Server.Port)
	}
	if cfg.Server.InboundBuffer < 0 {
		return nil, fmt.Errorf("invalid server.inbound_buffer: %d", cfg.Server.InboundBuffer)
	}

	cfg.Journal.Path = xdg.ExpandPath(cfg.Journal.Path)

	return &cfg, nil
}

// WriteDefault writes a starter config file at path, creating parent
// directories as needed. Refuses to clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := Default()
	cfg.Journal.Path = "$XDG_DATA_HOME/rpcmux/journal.sqlite"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DefaultPath returns the standard location for the config file.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome(), "config.yaml")
}
