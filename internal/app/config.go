package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the party finder backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Party       PartyConfig       `mapstructure:"party"`
	Events      EventsConfig      `mapstructure:"events"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig holds host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures bearer token settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// PartyConfig tunes the admission engine.
type PartyConfig struct {
	MaxSlots           int           `mapstructure:"max_slots"`
	ImmediateTTL       time.Duration `mapstructure:"immediate_ttl"`
	ProjectionCacheTTL time.Duration `mapstructure:"projection_cache_ttl"`
	SubmitRateLimit    int           `mapstructure:"submit_rate_limit"`
	SubmitRateWindow   time.Duration `mapstructure:"submit_rate_window"`
}

// EventsConfig controls the outbox relay and its sinks.
type EventsConfig struct {
	RelaySchedule string        `mapstructure:"relay_schedule"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	SentRetention time.Duration `mapstructure:"sent_retention"`
	Kafka         KafkaConfig   `mapstructure:"kafka"`
}

// KafkaConfig enables the Kafka sink.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MaintenanceConfig schedules background jobs.
type MaintenanceConfig struct {
	ExpireSchedule     string `mapstructure:"expire_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	PurgeSchedule      string `mapstructure:"purge_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles the health endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads config.yaml from ./config and paths, applies PARTYFINDER_ environment
// overrides and validates the result.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PARTYFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		return errors.New("config: auth.jwt.secret is required")
	}
	if c.Party.MaxSlots <= 0 {
		return errors.New("config: party.max_slots must be positive")
	}
	if c.Events.Kafka.Enabled && (len(c.Events.Kafka.Brokers) == 0 || strings.TrimSpace(c.Events.Kafka.Topic) == "") {
		return errors.New("config: events.kafka needs brokers and a topic when enabled")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/partyfinder.sqlite")
	v.SetDefault("database.dsn", "")
	for _, vendor := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+vendor+".host", "")
		v.SetDefault("database."+vendor+".port", 0)
		v.SetDefault("database."+vendor+".database", "")
		v.SetDefault("database."+vendor+".username", "")
		v.SetDefault("database."+vendor+".password", "")
	}

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "partyfinder")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("party.max_slots", 8)
	v.SetDefault("party.immediate_ttl", "2h")
	v.SetDefault("party.projection_cache_ttl", "5s")
	v.SetDefault("party.submit_rate_limit", 10)
	v.SetDefault("party.submit_rate_window", "1m")

	v.SetDefault("events.relay_schedule", "@every 5s")
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.max_attempts", 5)
	v.SetDefault("events.sent_retention", "168h")
	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "party-events")

	v.SetDefault("maintenance.expire_schedule", "@every 1m")
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.audit_retention_days", 90)
	v.SetDefault("maintenance.purge_schedule", "@hourly")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
