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
	Graph      GraphConfig      `yaml:"graph" mapstructure:"graph"`
	Structural StructuralConfig `yaml:"structural" mapstructure:"structural"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GraphConfig locates the road network and safe-zone datasets.
type GraphConfig struct {
	NetworkPath    string `yaml:"network_path" mapstructure:"network_path"`
	SafeZonesPath  string `yaml:"safe_zones_path" mapstructure:"safe_zones_path"`
	SafeZoneFormat string `yaml:"safe_zone_format" mapstructure:"safe_zone_format"` // yaml | shapefile
}

// StructuralConfig configures the structural-risk registry backend.
type StructuralConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EngineConfig tunes route calculation.
type EngineConfig struct {
	SearchTimeoutMS  int     `yaml:"search_timeout_ms" mapstructure:"search_timeout_ms"`
	MaxAlternatives  int     `yaml:"max_alternatives" mapstructure:"max_alternatives"`
	SweepConcurrency int     `yaml:"sweep_concurrency" mapstructure:"sweep_concurrency"`
	RecalcPerSecond  float64 `yaml:"recalc_per_second" mapstructure:"recalc_per_second"`
	RecalcBurst      int     `yaml:"recalc_burst" mapstructure:"recalc_burst"`
}

// SearchTimeout returns the per-search budget as a duration.
func (c EngineConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMS) * time.Millisecond
}

// SessionConfig tunes session lifecycle.
type SessionConfig struct {
	RetentionHours    int `yaml:"retention_hours" mapstructure:"retention_hours"`
	SweepIntervalSecs int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
	EvictIntervalSecs int `yaml:"evict_interval_secs" mapstructure:"evict_interval_secs"`
}

// Retention returns the session retention window.
func (c SessionConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// ServerConfig configures the HTTP binding.
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
	v.SetEnvPrefix("EVAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("graph.network_path", "data/network.geojson")
	v.SetDefault("graph.safe_zones_path", "data/safe_zones.yaml")
	v.SetDefault("graph.safe_zone_format", "yaml")
	v.SetDefault("structural.driver", "sqlite")
	v.SetDefault("structural.database_url", "structural.db")
	v.SetDefault("engine.search_timeout_ms", 2000)
	v.SetDefault("engine.max_alternatives", 2)
	v.SetDefault("engine.sweep_concurrency", 8)
	v.SetDefault("engine.recalc_per_second", 200)
	v.SetDefault("engine.recalc_burst", 50)
	v.SetDefault("session.retention_hours", 24)
	v.SetDefault("session.sweep_interval_secs", 30)
	v.SetDefault("session.evict_interval_secs", 300)
	v.SetDefault("server.port", 8080)
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
