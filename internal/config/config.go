package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env             string  `mapstructure:"env" validate:"required"`                             // current application environment (local, dev, prod etc)
	DefaultLanguage string  `mapstructure:"default_language" validate:"oneof=vi en"`             // meaning language used when a request does not name one
	Storage         Storage `mapstructure:"storage"`                                             // storage backend configuration section
	SRS             SRS     `mapstructure:"srs"`                                                 // scheduler tuning section
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"` // postgres or sqlite
	SQLitePath      string        `mapstructure:"sqlite_path"`                             // database file for the sqlite driver
	URL             string        `mapstructure:"-"`                                       // postgres connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections" validate:"min=1"`        // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`                       // maximum lifetime of a single connection
}

// SRS contains the scheduler parameters exposed to operators.
type SRS struct {
	DesiredRetention    float64  `mapstructure:"desired_retention" validate:"gt=0,lt=1"` // target recall probability at review time
	LearningSteps       []string `mapstructure:"learning_steps" validate:"dive,required"`
	RelearningSteps     []string `mapstructure:"relearning_steps" validate:"dive,required"`
	MaximumIntervalDays int      `mapstructure:"maximum_interval_days" validate:"min=1"`
	EnableFuzzing       bool     `mapstructure:"enable_fuzzing"`
}

// DSN returns the postgres connection string if it is configured.
func (s Storage) DSN() (string, error) {
	if s.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return s.URL, nil
}

// LearningDurations parses the configured learning steps into durations.
func (s SRS) LearningDurations() ([]time.Duration, error) {
	return parseSteps(s.LearningSteps)
}

// RelearningDurations parses the configured relearning steps into durations.
func (s SRS) RelearningDurations() ([]time.Duration, error) {
	return parseSteps(s.RelearningSteps)
}

func parseSteps(steps []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(steps))
	for _, step := range steps {
		d, err := time.ParseDuration(step)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler step %q: %w", step, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	// Set default values for configuration keys.
	v.SetDefault("env", "local")
	v.SetDefault("default_language", "vi")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "kioku.db")
	v.SetDefault("storage.max_connections", 20)
	v.SetDefault("storage.max_conn_lifetime", "30s")
	v.SetDefault("srs.desired_retention", 0.9)
	v.SetDefault("srs.learning_steps", []string{"1m", "10m"})
	v.SetDefault("srs.relearning_steps", []string{"10m"})
	v.SetDefault("srs.maximum_interval_days", 36500)
	v.SetDefault("srs.enable_fuzzing", true)

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// The postgres connection string is sensitive and only comes from the
	// environment. It is required only when the postgres driver is selected.
	cfg.Storage.URL = v.GetString("database_url")
	if cfg.Storage.Driver == "postgres" && cfg.Storage.URL == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
