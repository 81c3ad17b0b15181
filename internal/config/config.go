// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Freshness FreshnessConfig `yaml:"freshness" mapstructure:"freshness"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the price cache connection.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ScrapeConfig configures the source adapters and the resilience wrapper.
type ScrapeConfig struct {
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBaseSecs int      `yaml:"retry_base_secs" mapstructure:"retry_base_secs"`
	DelayMinMs    int      `yaml:"delay_min_ms" mapstructure:"delay_min_ms"`
	DelayMaxMs    int      `yaml:"delay_max_ms" mapstructure:"delay_max_ms"`
	MaxPages      int      `yaml:"max_pages" mapstructure:"max_pages"`
	UserAgent     string   `yaml:"user_agent" mapstructure:"user_agent"`
	Keywords      []string `yaml:"keywords" mapstructure:"keywords"`
}

// Timeout returns the per-request timeout as a duration.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetryBase returns the base backoff delay as a duration.
func (c ScrapeConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseSecs) * time.Second
}

// MatchConfig configures the name matcher.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// FreshnessConfig configures staleness handling.
type FreshnessConfig struct {
	// MaxAgeHours filters reads; 0 disables the filter.
	MaxAgeHours int `yaml:"max_age_hours" mapstructure:"max_age_hours"`
	// StalePushBackHours is how far scraped_at is pushed into the past
	// before each store run.
	StalePushBackHours int `yaml:"stale_push_back_hours" mapstructure:"stale_push_back_hours"`
}

// MaxAge returns the freshness window as a duration; 0 means disabled.
func (c FreshnessConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// PushBack returns the stale push-back window as a duration.
func (c FreshnessConfig) PushBack() time.Duration {
	return time.Duration(c.StalePushBackHours) * time.Hour
}

// ScheduleConfig configures the recurring sweep trigger.
type ScheduleConfig struct {
	Spec string `yaml:"spec" mapstructure:"spec"`
}

// SourcesConfig restricts which retailers are swept.
type SourcesConfig struct {
	Enabled []string `yaml:"enabled" mapstructure:"enabled"`
}

// ServerConfig configures the sweep trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("scrape.timeout_secs", 12)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.retry_base_secs", 2)
	v.SetDefault("scrape.delay_min_ms", 400)
	v.SetDefault("scrape.delay_max_ms", 1500)
	v.SetDefault("scrape.max_pages", 40)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("scrape.keywords", []string{
		"молоко", "хлеб", "яйца", "сахар", "масло подсолнечное",
		"гречка", "рис", "макароны", "творог", "сыр",
	})
	v.SetDefault("match.threshold", 0.65)
	v.SetDefault("freshness.max_age_hours", 0)
	v.SetDefault("freshness.stale_push_back_hours", 87600)
	v.SetDefault("schedule.spec", "@every 6h")
	v.SetDefault("sources.enabled", []string{
		"pyaterochka", "perekrestok", "magnit", "lenta", "auchan",
	})
	v.SetDefault("server.port", 8085)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
