package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "middle-housing.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
	assert.True(t, cfg.Server.LoadOnStartup)
	assert.Equal(t, "permits.csv", cfg.Ingest.DefaultFile)
	assert.Equal(t, 3, cfg.Ingest.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Ingest.RateLimit, 0.001)
	assert.Empty(t, cfg.Classifier.VocabularyFile)
	assert.Equal(t, "none", cfg.Geocode.Scope)
	assert.Equal(t, 4, cfg.Geocode.Concurrency)
	assert.Equal(t, 720, cfg.Geocode.CacheTTLHours)
	assert.Equal(t, "Seattle", cfg.Geocode.DefaultCity)
	assert.Equal(t, "WA", cfg.Geocode.DefaultState)
	assert.Equal(t, 8, cfg.Batch.Workers)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/permits
log:
  level: debug
  format: console
server:
  port: 9090
geocode:
  scope: middle_housing
  batch_size: 500
batch:
  workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/permits", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "middle_housing", cfg.Geocode.Scope)
	assert.Equal(t, 500, cfg.Geocode.BatchSize)
	assert.Equal(t, 2, cfg.Batch.Workers)
	// Defaults still apply for unset values
	assert.Equal(t, "permits.csv", cfg.Ingest.DefaultFile)
	assert.Equal(t, 4, cfg.Geocode.Concurrency)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MIDHOUSING_STORE_DRIVER", "sqlite")
	t.Setenv("MIDHOUSING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MIDHOUSING_SERVER_PORT", "3000")
	t.Setenv("MIDHOUSING_GEOCODE_GOOGLE_API_KEY", "gkey")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "gkey", cfg.Geocode.GoogleAPIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 50
	cfg.Geocode.Scope = "none"
	cfg.Geocode.Concurrency = 4
	cfg.Batch.Workers = 8
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "classify defaults", mode: "classify"},
		{name: "serve defaults", mode: "serve"},
		{name: "map defaults", mode: "map"},
		{
			name:    "postgres without url",
			mode:    "classify",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.database_url is required",
		},
		{
			name: "postgres with url",
			mode: "classify",
			mutate: func(c *Config) {
				c.Store.Driver = "postgres"
				c.Store.DatabaseURL = "postgres://localhost/test"
			},
		},
		{
			name:    "unknown driver",
			mode:    "classify",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver must be sqlite or postgres",
		},
		{
			name:    "invalid port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be > 0",
		},
		{
			name:   "port ignored outside serve",
			mode:   "classify",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:    "upload limit",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.MaxUploadMB = 0 },
			wantErr: "server.max_upload_mb",
		},
		{
			name:    "bad scope",
			mode:    "map",
			mutate:  func(c *Config) { c.Geocode.Scope = "some" },
			wantErr: "geocode.scope",
		},
		{
			name:   "hyphenated scope",
			mode:   "map",
			mutate: func(c *Config) { c.Geocode.Scope = "middle-housing" },
		},
		{
			name:    "workers bound",
			mode:    "classify",
			mutate:  func(c *Config) { c.Batch.Workers = 65 },
			wantErr: "batch.workers must be between 0 and 64",
		},
		{
			name:    "batch size bound",
			mode:    "classify",
			mutate:  func(c *Config) { c.Geocode.BatchSize = 10001 },
			wantErr: "geocode.batch_size",
		},
		{
			name:    "concurrency bound",
			mode:    "classify",
			mutate:  func(c *Config) { c.Geocode.Concurrency = -1 },
			wantErr: "geocode.concurrency",
		},
		{
			name:    "unknown mode",
			mode:    "unknown",
			wantErr: "unknown mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Server.Port = -1

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "server.port must be > 0")
}
