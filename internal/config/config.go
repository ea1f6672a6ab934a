package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the tracking service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the HTTP API and monitoring endpoints.
// - Tracker: Watch and retry settings applied to every new tracker.
// - Geocoder: Reverse geocoding provider settings.
// - QueueSize: Per-watch event buffer of the device hub.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env       string         `mapstructure:"env"        validate:"required"`
	Port      int            `mapstructure:"port"       validate:"min=1,max=65535"`
	Tracker   TrackerConfig  `mapstructure:"tracker"`
	Geocoder  GeocoderConfig `mapstructure:"geocoder"`
	QueueSize int            `mapstructure:"queue_size" validate:"min=1"`
	Database  PostgresConfig `mapstructure:"postgres"`
}

// TrackerConfig mirrors tracker.Config in configuration form.
type TrackerConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"       validate:"gt=0"`
	MaximumAge   time.Duration `mapstructure:"maximum_age"   validate:"gte=0"`
	HighAccuracy bool          `mapstructure:"high_accuracy"`
	MaxRetries   int           `mapstructure:"max_retries"   validate:"gte=0"`
	BackoffStep  time.Duration `mapstructure:"backoff_step"  validate:"gt=0"`
}

// GeocoderConfig selects the reverse geocoding provider.
type GeocoderConfig struct {
	Provider  string `mapstructure:"provider"   validate:"oneof=google nominatim none"`
	APIKey    string `mapstructure:"api_key"`
	RateLimit int    `mapstructure:"rate_limit" validate:"gte=0"`
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`     // Host is the database server address.
	Port     string `mapstructure:"port"`     // Port is the database server port.
	User     string `mapstructure:"user"`     // User is the database user.
	Password string `mapstructure:"password"` // Password is the database user's password.
	Name     string `mapstructure:"name"`     // Name is the name of the database.
}

// envBindings maps configuration keys to the environment variables that set them.
var envBindings = map[string]string{
	"env":                   "COMPASS_ENV",
	"port":                  "COMPASS_PORT",
	"queue_size":            "COMPASS_QUEUE_SIZE",
	"tracker.timeout":       "COMPASS_TRACKER_TIMEOUT",
	"tracker.maximum_age":   "COMPASS_TRACKER_MAXIMUM_AGE",
	"tracker.high_accuracy": "COMPASS_TRACKER_HIGH_ACCURACY",
	"tracker.max_retries":   "COMPASS_TRACKER_MAX_RETRIES",
	"tracker.backoff_step":  "COMPASS_TRACKER_BACKOFF_STEP",
	"geocoder.provider":     "COMPASS_GEOCODER_PROVIDER",
	"geocoder.api_key":      "COMPASS_GEOCODER_API_KEY",
	"geocoder.rate_limit":   "COMPASS_GEOCODER_RATE_LIMIT",
	"postgres.host":         "DB_HOST",
	"postgres.port":         "DB_PORT",
	"postgres.user":         "DB_USERNAME",
	"postgres.password":     "DB_PASSWORD",
	"postgres.name":         "DB_NAME",
}

// MustLoad loads the configuration from the environment (and an optional .env file)
// and panics if it is invalid.
func MustLoad() *Config {
	cfg, err := Load(".env")
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	return cfg
}

// Load reads envFile if it exists, then resolves every setting from the environment with defaults.
// Variables already present in the environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Geocoder.Provider = strings.ToLower(cfg.Geocoder.Provider)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("port", 8080)
	v.SetDefault("queue_size", 64)
	v.SetDefault("tracker.timeout", "10s")
	v.SetDefault("tracker.maximum_age", "0s")
	v.SetDefault("tracker.high_accuracy", true)
	v.SetDefault("tracker.max_retries", 3)
	v.SetDefault("tracker.backoff_step", "2s")
	v.SetDefault("geocoder.provider", "none")
	v.SetDefault("geocoder.rate_limit", 1)
	v.SetDefault("postgres.port", "5432")
}
