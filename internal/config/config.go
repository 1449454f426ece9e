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
	Data        DataConfig        `yaml:"data" mapstructure:"data"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Constraints ConstraintsConfig `yaml:"constraints" mapstructure:"constraints"`
	Selection   SelectionConfig   `yaml:"selection" mapstructure:"selection"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input layers.
type DataConfig struct {
	RegionsPath              string  `yaml:"regions_path" mapstructure:"regions_path"`
	ChargersPath             string  `yaml:"chargers_path" mapstructure:"chargers_path"`
	DefaultChargerDistanceMi float64 `yaml:"default_charger_distance_mi" mapstructure:"default_charger_distance_mi"`
}

// ScoringConfig selects the scoring profile and the run-level toggles.
type ScoringConfig struct {
	ProfilePath           string   `yaml:"profile_path" mapstructure:"profile_path"`
	SecondaryCorridorMode bool     `yaml:"secondary_corridor_mode" mapstructure:"secondary_corridor_mode"`
	LegacyEJGating        bool     `yaml:"legacy_ej_gating" mapstructure:"legacy_ej_gating"`
	EJGatedChargingTypes  []string `yaml:"ej_gated_charging_types" mapstructure:"ej_gated_charging_types"`
}

// ConstraintsConfig overrides the feasibility constraints. A nil
// MinPersonTrips keeps the profile value.
type ConstraintsConfig struct {
	MinPersonTrips            *float64 `yaml:"min_person_trips" mapstructure:"min_person_trips"`
	OnlyRural                 bool     `yaml:"only_rural" mapstructure:"only_rural"`
	OnlyWithinSecondaryBuffer bool     `yaml:"only_within_secondary_buffer" mapstructure:"only_within_secondary_buffer"`
	ExcludeZeroHeadroom       bool     `yaml:"exclude_zero_headroom" mapstructure:"exclude_zero_headroom"`
}

// SelectionConfig configures greedy site selection.
type SelectionConfig struct {
	NSites        int     `yaml:"n_sites" mapstructure:"n_sites"`
	MinDistanceMi float64 `yaml:"min_distance_mi" mapstructure:"min_distance_mi"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("SITESELECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.regions_path", "")
	v.SetDefault("data.chargers_path", "")
	v.SetDefault("data.default_charger_distance_mi", 50.0)
	v.SetDefault("scoring.profile_path", "")
	v.SetDefault("scoring.secondary_corridor_mode", false)
	v.SetDefault("scoring.legacy_ej_gating", false)
	v.SetDefault("scoring.ej_gated_charging_types", []string{"other"})
	v.SetDefault("constraints.only_rural", false)
	v.SetDefault("constraints.only_within_secondary_buffer", false)
	v.SetDefault("constraints.exclude_zero_headroom", false)
	v.SetDefault("selection.n_sites", 4)
	v.SetDefault("selection.min_distance_mi", 0.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "siteselect.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

	// Unset leaves the profile value in place.
	if v.IsSet("constraints.min_person_trips") {
		trips := v.GetFloat64("constraints.min_person_trips")
		cfg.Constraints.MinPersonTrips = &trips
	}

	return &cfg, nil
}

// Validate checks the settings needed by a command mode: "score", "serve"
// or "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score", "serve":
		if c.Data.RegionsPath == "" {
			errs = append(errs, "data.regions_path is required")
		}
		if c.Data.DefaultChargerDistanceMi < 0 {
			errs = append(errs, "data.default_charger_distance_mi must be >= 0")
		}
		if c.Selection.NSites < 0 {
			errs = append(errs, "selection.n_sites must be >= 0")
		}
		if c.Selection.MinDistanceMi < 0 {
			errs = append(errs, "selection.min_distance_mi must be >= 0")
		}
		if c.Constraints.MinPersonTrips != nil && *c.Constraints.MinPersonTrips < 0 {
			errs = append(errs, "constraints.min_person_trips must be >= 0")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
				errs = append(errs, "server.rate_limit and server.rate_burst must be >= 0")
			}
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "", "none":
		if mode == "runs" {
			errs = append(errs, "store.driver is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
