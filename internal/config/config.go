// Package config loads service settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fieldcrm/internal/geo"
)

type Config struct {
	Port           string  `mapstructure:"port"`
	DatabaseURL    string  `mapstructure:"database_url"`
	DBMigrate      bool    `mapstructure:"db_migrate"`
	RedisURL       string  `mapstructure:"redis_url"`
	AMQPURL        string  `mapstructure:"amqp_url"`
	Broker         string  `mapstructure:"broker"`
	AuthMode       string  `mapstructure:"auth_mode"`
	AuthHMACSecret string  `mapstructure:"auth_hmac_secret"`
	AuthJWKSURL    string  `mapstructure:"auth_jwks_url"`
	AuthUserClaim  string  `mapstructure:"auth_user_claim"`
	RateRPS        float64 `mapstructure:"rate_rps"`
	RateBurst      int     `mapstructure:"rate_burst"`
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"`
	TravelSpeedKmh float64 `mapstructure:"travel_speed_kmh"`
	DistanceModel  string  `mapstructure:"distance_model"`
	RouteModel     string  `mapstructure:"route_distance_model"`
	AllowOrigins   string  `mapstructure:"allow_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("db_migrate", true)
	v.SetDefault("redis_url", "")
	v.SetDefault("amqp_url", "")
	v.SetDefault("broker", "")
	v.SetDefault("auth_mode", "dev")
	v.SetDefault("auth_hmac_secret", "")
	v.SetDefault("auth_jwks_url", "")
	v.SetDefault("auth_user_claim", "sub")
	v.SetDefault("rate_rps", 0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("travel_speed_kmh", geo.DefaultSpeedKmh)
	v.SetDefault("distance_model", string(geo.WGS84))
	v.SetDefault("route_distance_model", string(geo.Sphere))
	v.SetDefault("allow_origins", "*")
}

// Load reads .env (if present), then CONFIG_FILE or ./config.yaml (if present), then
// environment variables, which win.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := os.Getenv("CONFIG_FILE")
	if file == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			file = "config.yaml"
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

// Default returns the built-in defaults without reading files or the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	c.Broker = strings.ToLower(strings.TrimSpace(c.Broker))
	if c.Broker == "" {
		switch {
		case c.RedisURL != "":
			c.Broker = "redis"
		case c.AMQPURL != "":
			c.Broker = "amqp"
		default:
			c.Broker = "memory"
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.TravelSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("travel_speed_kmh must be > 0, got %v", c.TravelSpeedKmh))
	}
	if _, err := geo.ParseModel(c.DistanceModel); err != nil {
		errs = append(errs, fmt.Errorf("distance_model: %w", err))
	}
	if _, err := geo.ParseModel(c.RouteModel); err != nil {
		errs = append(errs, fmt.Errorf("route_distance_model: %w", err))
	}
	switch c.Broker {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("broker redis requires redis_url"))
		}
	case "amqp":
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("broker amqp requires amqp_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown broker %q", c.Broker))
	}
	switch c.AuthMode {
	case "dev":
	case "hmac":
		if c.AuthHMACSecret == "" {
			errs = append(errs, errors.New("auth_mode hmac requires auth_hmac_secret"))
		}
	case "jwks":
		if c.AuthJWKSURL == "" {
			errs = append(errs, errors.New("auth_mode jwks requires auth_jwks_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth_mode %q", c.AuthMode))
	}
	return errors.Join(errs...)
}

// DistanceEstimator serves the point-to-point distance endpoint.
func (c Config) DistanceEstimator() geo.Estimator {
	m, err := geo.ParseModel(c.DistanceModel)
	if err != nil {
		m = geo.WGS84
	}
	return geo.Estimator{Model: m, SpeedKmh: c.TravelSpeedKmh}
}

// RouteEstimator is used for route plans and their exports.
func (c Config) RouteEstimator() geo.Estimator {
	m, err := geo.ParseModel(c.RouteModel)
	if err != nil {
		m = geo.Sphere
	}
	return geo.Estimator{Model: m, SpeedKmh: c.TravelSpeedKmh}
}

// Redacted reports the settings safe to expose on debug endpoints.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"port":             c.Port,
		"auth_mode":        c.AuthMode,
		"broker":           c.Broker,
		"rate_rps":         c.RateRPS,
		"rate_burst":       c.RateBurst,
		"travel_speed_kmh": c.TravelSpeedKmh,
		"distance_model":   c.DistanceModel,
		"route_model":      c.RouteModel,
		"allow_origins":    c.AllowOrigins,
		"has_database_url": c.DatabaseURL != "",
		"has_redis_url":    c.RedisURL != "",
		"has_amqp_url":     c.AMQPURL != "",
	}
}
