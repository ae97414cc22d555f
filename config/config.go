// Package config loads the timesheet server configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Export   ExportConfig   `yaml:"export"`
	CORS     CORSConfig     `yaml:"cors"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type ExportConfig struct {
	Workers int `yaml:"workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Database: DatabaseConfig{Path: "./timesheet.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Export:   ExportConfig{Workers: 4},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TIMESHEET_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TIMESHEET_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("TIMESHEET_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TIMESHEET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path not configured (set database.path or TIMESHEET_DB)")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}
	if c.Export.Workers < 1 {
		return fmt.Errorf("export workers must be at least 1, got %d", c.Export.Workers)
	}
	return nil
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
