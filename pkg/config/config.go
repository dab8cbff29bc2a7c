package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the wallet service.
type Config struct {
	AppEnv        string              `mapstructure:"app_env"`
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Logger        LoggerConfig        `mapstructure:"logger" validate:"required"`
	Sentry        SentryConfig        `mapstructure:"sentry"`
	Storage       StorageConfig       `mapstructure:"storage" validate:"required"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	LockWait     time.Duration `mapstructure:"lock_wait"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres memory"`
}

type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	Enabled   bool                     `mapstructure:"enabled"`
	Global    RateLimitRule            `mapstructure:"global"`
	PerUser   RateLimitRule            `mapstructure:"per_user"`
	Routes    map[string]RateLimitRule `mapstructure:"routes"`
	Whitelist []string                 `mapstructure:"whitelist"`
}

type JobsConfig struct {
	Enabled            bool           `mapstructure:"enabled"`
	Concurrency        int            `mapstructure:"concurrency"`
	Queues             map[string]int `mapstructure:"queues"`
	VIPExpirySpec      string         `mapstructure:"vip_expiry_spec"`
	AgencyActivitySpec string         `mapstructure:"agency_activity_spec"`
}

type NotificationsConfig struct {
	DefaultLanguage string         `mapstructure:"default_language"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Token   string        `mapstructure:"token" validate:"required_if=Enabled true"`
	Timeout time.Duration `mapstructure:"timeout"`
}
