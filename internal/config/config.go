package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	CORSOrigins   []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadMB   int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	ShutdownSecs  int      `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
	LoadOnStartup bool     `yaml:"load_on_startup" mapstructure:"load_on_startup"`
}

// IngestConfig configures how permit exports are fetched.
type IngestConfig struct {
	DefaultFile    string  `yaml:"default_file" mapstructure:"default_file"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	FTPTimeoutSecs int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// ClassifierConfig configures the keyword vocabulary.
type ClassifierConfig struct {
	VocabularyFile string `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
}

// GeocodeConfig configures address geocoding.
type GeocodeConfig struct {
	Scope            string  `yaml:"scope" mapstructure:"scope"`
	GoogleAPIKey     string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	CacheTTLHours    int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	DefaultCity      string  `yaml:"default_city" mapstructure:"default_city"`
	DefaultState     string  `yaml:"default_state" mapstructure:"default_state"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// BatchConfig configures batch classification.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MIDHOUSING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "middle-housing.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.shutdown_secs", 10)
	v.SetDefault("server.load_on_startup", true)
	v.SetDefault("ingest.default_file", "permits.csv")
	v.SetDefault("ingest.user_agent", "middle-housing/1.0")
	v.SetDefault("ingest.timeout_secs", 60)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.rate_limit", 5.0)
	v.SetDefault("ingest.ftp_timeout_secs", 30)
	v.SetDefault("classifier.vocabulary_file", "")
	v.SetDefault("geocode.scope", "none")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.concurrency", 4)
	v.SetDefault("geocode.batch_size", 0)
	v.SetDefault("geocode.cache_ttl_hours", 24*30)
	v.SetDefault("geocode.default_city", "Seattle")
	v.SetDefault("geocode.default_state", "WA")
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.initial_backoff_ms", 500)
	v.SetDefault("geocode.failure_threshold", 5)
	v.SetDefault("geocode.reset_timeout_secs", 30)
	v.SetDefault("batch.workers", 8)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "classify", "map", or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch strings.ToLower(c.Store.Driver) {
	case "", "sqlite":
	case "postgres", "postgresql", "pgx":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if c.Batch.Workers < 0 || c.Batch.Workers > 64 {
		errs = append(errs, "batch.workers must be between 0 and 64")
	}

	switch strings.ToLower(strings.ReplaceAll(c.Geocode.Scope, "-", "_")) {
	case "", "none", "all", "middle_housing":
	default:
		errs = append(errs, "geocode.scope must be none, all, or middle_housing")
	}
	if c.Geocode.Concurrency < 0 || c.Geocode.Concurrency > 32 {
		errs = append(errs, "geocode.concurrency must be between 0 and 32")
	}
	if c.Geocode.BatchSize < 0 || c.Geocode.BatchSize > 10000 {
		errs = append(errs, "geocode.batch_size must be between 0 and 10000")
	}

	switch mode {
	case "classify", "map":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
