package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HERE   HEREConfig   `yaml:"here" mapstructure:"here"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// HEREConfig holds HERE API credentials and endpoint versions.
type HEREConfig struct {
	AppID          string `yaml:"app_id" mapstructure:"app_id"`
	AppCode        string `yaml:"app_code" mapstructure:"app_code"`
	GeoVersion     string `yaml:"geo_version" mapstructure:"geo_version"`
	PlacesVersion  string `yaml:"places_version" mapstructure:"places_version"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchGeocoders int    `yaml:"batch_geocoders" mapstructure:"batch_geocoders"`
}

// SearchConfig holds the default search parameters.
type SearchConfig struct {
	Terms      []string `yaml:"terms" mapstructure:"terms"`
	Radius     int      `yaml:"radius" mapstructure:"radius"`
	MaxPerTerm int      `yaml:"max_per_term" mapstructure:"max_per_term"`
	Out        string   `yaml:"out" mapstructure:"out"`
}

// StoreConfig configures the geocode cache and run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLDays     int    `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// ServerConfig configures the HTTP search server.
type ServerConfig struct {
	Port        int `yaml:"port" mapstructure:"port"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
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
	v.SetEnvPrefix("NEARBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("here.geo_version", "6.2")
	v.SetDefault("here.places_version", "v1")
	v.SetDefault("here.timeout_secs", 10)
	v.SetDefault("here.batch_geocoders", 4)
	v.SetDefault("search.terms", []string{"beer", "club", "restaurant"})
	v.SetDefault("search.radius", 2000)
	v.SetDefault("search.max_per_term", 20)
	v.SetDefault("search.out", "pymi")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "nearby.db")
	v.SetDefault("store.ttl_days", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_secs", 30)
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

// Validate checks that the fields required for the given mode are set.
// Modes: "search", "resolve", "serve", "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	needCreds := func() {
		if c.HERE.AppID == "" {
			problems = append(problems, "here.app_id is required")
		}
		if c.HERE.AppCode == "" {
			problems = append(problems, "here.app_code is required")
		}
	}
	needStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
		if c.Store.TTLDays < 0 {
			problems = append(problems, "store.ttl_days must be >= 0")
		}
	}

	switch mode {
	case "search", "resolve":
		needCreds()
		needStore()
		if c.Search.Radius <= 0 {
			problems = append(problems, "search.radius must be > 0")
		}
		if c.Search.MaxPerTerm < 0 {
			problems = append(problems, "search.max_per_term must be >= 0")
		}
	case "serve":
		needCreds()
		needStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		needStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
