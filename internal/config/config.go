package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Distance DistanceConfig `mapstructure:"distance"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	RateLimitPerSec  float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MetricsNamespace string        `mapstructure:"metrics_namespace"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type DistanceConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type DispatchConfig struct {
	// SearchRadiusKm bounds the geospatial filter of the reservation.
	SearchRadiusKm float64 `mapstructure:"search_radius_km"`
}

// envOverrides are the deployment-supplied secrets and endpoints that take
// precedence over the config file.
type envOverrides struct {
	DatabaseHost   string   `envconfig:"DB_HOST"`
	DatabasePort   int      `envconfig:"DB_PORT"`
	DatabaseUser   string   `envconfig:"DB_USER"`
	DatabasePass   string   `envconfig:"DB_PASSWORD"`
	DatabaseName   string   `envconfig:"DB_NAME"`
	RedisURL       string   `envconfig:"REDIS_URL"`
	DistanceAPIKey string   `envconfig:"DISTANCE_API_KEY"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	applyOverrides(&cfg, env)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyOverrides(cfg *Config, env envOverrides) {
	if env.DatabaseHost != "" {
		cfg.Database.Host = env.DatabaseHost
	}
	if env.DatabasePort != 0 {
		cfg.Database.Port = env.DatabasePort
	}
	if env.DatabaseUser != "" {
		cfg.Database.User = env.DatabaseUser
	}
	if env.DatabasePass != "" {
		cfg.Database.Password = env.DatabasePass
	}
	if env.DatabaseName != "" {
		cfg.Database.Name = env.DatabaseName
	}
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.DistanceAPIKey != "" {
		cfg.Distance.APIKey = env.DistanceAPIKey
	}
	if len(env.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = env.AllowedOrigins
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Server.MetricsNamespace == "" {
		cfg.Server.MetricsNamespace = "dispatch"
	}
	if cfg.Distance.Timeout == 0 {
		cfg.Distance.Timeout = 5 * time.Second
	}
	if cfg.Distance.CacheTTL == 0 {
		cfg.Distance.CacheTTL = 10 * time.Minute
	}
	if cfg.Dispatch.SearchRadiusKm == 0 {
		cfg.Dispatch.SearchRadiusKm = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis url is required")
	}
	if c.Dispatch.SearchRadiusKm <= 0 {
		return fmt.Errorf("search radius must be positive")
	}
	return nil
}
