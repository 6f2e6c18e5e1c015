// Package config loads service configuration from the environment, after
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultAccessSecret  = "default_access_secret"
	defaultRefreshSecret = "default_refresh_secret"
)

// Duration accepts time.ParseDuration syntax plus a whole-day suffix ("7d").
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid duration %q", s)
		}
		*d = Duration(time.Duration(n) * 24 * time.Hour)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Postgres struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	DB       string `env:"POSTGRES_DB"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

func (p Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     "/" + p.DB,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type RabbitMQ struct {
	URL                string   `env:"RABBITMQ_URL" envDefault:"amqp://localhost:5672"`
	Exchange           string   `env:"RABBITMQ_EXCHANGE" envDefault:"user_events"`
	Queue              string   `env:"RABBITMQ_QUEUE"`
	QueueType          string   `env:"RABBITMQ_QUEUE_TYPE"`
	Prefetch           int      `env:"RABBITMQ_PREFETCH" envDefault:"1"`
	MaxDeliveries      int      `env:"RABBITMQ_MAX_DELIVERIES" envDefault:"0"`
	DeadLetterExchange string   `env:"RABBITMQ_DEAD_LETTER_EXCHANGE"`
	ConnectTimeout     Duration `env:"RABBITMQ_CONNECT_TIMEOUT" envDefault:"10s"`
	// ConnectRetry is how long a service keeps retrying at boot before
	// giving up and exiting.
	ConnectRetry Duration `env:"RABBITMQ_CONNECT_RETRY" envDefault:"1m"`
}

type Common struct {
	Env            string   `env:"GO_ENV" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"debug"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3001"`
	RedisURL       string   `env:"REDIS_URL"`
	JWTIssuer      string   `env:"JWT_ISSUER"`
	AccessSecret   string   `env:"JWT_ACCESS_SECRET" envDefault:"default_access_secret"`
	Postgres       Postgres
	RabbitMQ       RabbitMQ
}

func (c Common) Production() bool {
	return c.Env == "production"
}

type Auth struct {
	Common
	Port          int      `env:"PORT" envDefault:"3000"`
	RefreshSecret string   `env:"JWT_REFRESH_SECRET" envDefault:"default_refresh_secret"`
	AccessTTL     Duration `env:"JWT_ACCESS_EXPIRATION" envDefault:"15m"`
	RefreshTTL    Duration `env:"JWT_REFRESH_EXPIRATION" envDefault:"7d"`
	BcryptCost    int      `env:"BCRYPT_COST" envDefault:"10"`
	// Requests per second per client IP on /auth and registration.
	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateBurst int     `env:"AUTH_RATE_BURST" envDefault:"10"`
}

type Product struct {
	Common
	Port int `env:"PORT" envDefault:"3001"`
}

// LoadAuth reads the identity service configuration.
func LoadAuth() (*Auth, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Auth{}
	cfg.Postgres.DB = "auth_service"
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadProduct reads the product service configuration.
func LoadProduct() (*Product, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Product{}
	cfg.Postgres.DB = "product_service"
	cfg.RabbitMQ.Queue = "product_service_queue"
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *Common) validate() error {
	if c.AccessSecret == "" {
		return errors.New("JWT_ACCESS_SECRET must not be empty")
	}
	if c.Production() && c.AccessSecret == defaultAccessSecret {
		return errors.New("JWT_ACCESS_SECRET must be set in production")
	}
	if c.RabbitMQ.Exchange == "" {
		return errors.New("RABBITMQ_EXCHANGE must not be empty")
	}
	if c.RabbitMQ.MaxDeliveries < 0 {
		return errors.New("RABBITMQ_MAX_DELIVERIES must not be negative")
	}
	return nil
}

func (c *Auth) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if c.RefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET must not be empty")
	}
	if c.RefreshSecret == c.AccessSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.Production() && c.RefreshSecret == defaultRefreshSecret {
		return errors.New("JWT_REFRESH_SECRET must be set in production")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token expirations must be positive")
	}
	return nil
}

// Validate requires a queue because the product service consumes events.
// The auth service only publishes and ignores RABBITMQ_QUEUE.
func (c *Product) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if c.RabbitMQ.Queue == "" {
		return errors.New("RABBITMQ_QUEUE must not be empty")
	}
	return nil
}

// Warnings lists variables that fell back to development defaults.
func (c *Auth) Warnings() []string {
	return warnings(c.Production(), "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "POSTGRES_PASSWORD", "RABBITMQ_URL")
}

func (c *Product) Warnings() []string {
	return warnings(c.Production(), "JWT_ACCESS_SECRET", "POSTGRES_PASSWORD", "RABBITMQ_URL")
}

func warnings(production bool, required ...string) []string {
	if production {
		return nil
	}
	var out []string
	for _, name := range required {
		if _, ok := os.LookupEnv(name); !ok {
			out = append(out, name+" is not set, using default value")
		}
	}
	return out
}
