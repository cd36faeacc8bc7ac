package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "relaydesk"
	DefaultPGSSLMode         = "disable"
	DefaultRabbitExchange    = "relaydesk"
	DefaultRabbitQueue       = "relaydesk.jobs"
	DefaultRabbitWorkers     = 4
	DefaultStorageRoot       = "data"
	DefaultPublicBaseURL     = "http://127.0.0.1:8080"
	DefaultRetentionSchedule = "0 * * * *"
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Admin     AdminConfig     `toml:"admin"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Rabbit    RabbitConfig    `toml:"rabbit"`
	Storage   StorageConfig   `toml:"storage"`
	Retention RetentionConfig `toml:"retention"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// PublicBaseURL is used to build externally reachable attachment URLs.
	PublicBaseURL string `toml:"public_base_url"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// ExpiresIn parses the configured JWT lifetime.
func (c AuthConfig) ExpiresIn() (time.Duration, error) {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil {
		return 0, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("jwt_expires_in must be positive")
	}
	return d, nil
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN returns the pgx connection string for the configured database.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RabbitConfig configures the async job queue. An empty URL disables the
// queue; webhook processing then runs inline in the HTTP handler.
type RabbitConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
	Queue    string `toml:"queue"`
	Workers  int    `toml:"workers"`
}

func (c RabbitConfig) Enabled() bool {
	return c.URL != ""
}

type StorageConfig struct {
	// Root is the directory holding downloaded attachment blobs.
	Root string `toml:"root"`
}

// RetentionConfig controls the idle-chat sweep. IdleCloseHours <= 0
// disables the sweep.
type RetentionConfig struct {
	Schedule       string `toml:"schedule"`
	IdleCloseHours int    `toml:"idle_close_hours"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:          DefaultHTTPAddr,
			PublicBaseURL: DefaultPublicBaseURL,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "change-your-password-here",
			Email:    "you@example.com",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Rabbit: RabbitConfig{
			Exchange: DefaultRabbitExchange,
			Queue:    DefaultRabbitQueue,
			Workers:  DefaultRabbitWorkers,
		},
		Storage: StorageConfig{
			Root: DefaultStorageRoot,
		},
		Retention: RetentionConfig{
			Schedule: DefaultRetentionSchedule,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
