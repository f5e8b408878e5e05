package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	// URL empty keeps preferences in process memory.
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type StreamConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type CameraConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type OperatorConfig struct {
	UID          string `mapstructure:"uid"`
	Email        string `mapstructure:"email"`
	DisplayName  string `mapstructure:"display_name"`
	PasswordHash string `mapstructure:"password_hash"`
	Disabled     bool   `mapstructure:"disabled"`
}

type AuthConfig struct {
	TokenExpiry      time.Duration    `mapstructure:"token_expiry"`
	LoginRate        float64          `mapstructure:"login_rate"`
	LoginBurst       int              `mapstructure:"login_burst"`
	LoginIdleTTL     time.Duration    `mapstructure:"login_idle_ttl"`
	Operators        []OperatorConfig `mapstructure:"operators"`
	RequireTokenOnWS bool             `mapstructure:"require_token_on_ws"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
	Namespace         string `mapstructure:"namespace"`
}

// Secrets are read from the environment only (POSTURE_JWT_SECRET, ...).
type Secrets struct {
	JWTSecret        string `envconfig:"JWT_SECRET" default:"change-me"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "posture")
	v.SetDefault("database.name", "posture")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.key_prefix", "posture:")

	v.SetDefault("stream.base_url", "ws://localhost:8000/ws")
	v.SetDefault("stream.base_delay", 2*time.Second)
	v.SetDefault("stream.max_attempts", 5)
	v.SetDefault("stream.handshake_timeout", 10*time.Second)

	v.SetDefault("camera.base_url", "http://localhost:8000")
	v.SetDefault("camera.timeout", 10*time.Second)
	v.SetDefault("camera.breaker_failures", 3)
	v.SetDefault("camera.breaker_timeout", 30*time.Second)

	v.SetDefault("auth.token_expiry", 12*time.Hour)
	v.SetDefault("auth.login_rate", 0.2)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("auth.login_idle_ttl", 15*time.Minute)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.namespace", "posture")
}

// LoadConfig reads config.yml (if any) from the usual locations, applies
// environment overrides and loads secrets.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix("posture")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("posture", &config.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if config.Secrets.DatabasePassword != "" {
		config.Database.Password = config.Secrets.DatabasePassword
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("stream.max_attempts must not be negative")
	}
	if c.Stream.BaseDelay <= 0 {
		return fmt.Errorf("stream.base_delay must be positive")
	}
	if c.Stream.BaseURL == "" {
		return fmt.Errorf("stream.base_url is required")
	}
	return nil
}
