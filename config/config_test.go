package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/config"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  write_timeout: 2m
database:
  path: /var/lib/timesheet/db.sqlite
logging:
  level: debug
  format: json
export:
  workers: 8
cors:
  allowed_origins: ["https://hr.example.com"]
`), 0o600))

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/timesheet/db.sqlite", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Export.Workers)
	assert.Equal(t, []string{"https://hr.example.com"}, cfg.CORS.AllowedOrigins)

	log, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TIMESHEET_PORT", "7000")
	t.Setenv("TIMESHEET_DB", ":memory:")
	t.Setenv("TIMESHEET_LOG_LEVEL", "warn")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_BadEnvPort(t *testing.T) {
	t.Setenv("TIMESHEET_PORT", "eighty")

	_, err := config.Load("")

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"port", func(c *config.Config) { c.Server.Port = 0 }},
		{"db path", func(c *config.Config) { c.Database.Path = "" }},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"workers", func(c *config.Config) { c.Export.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
