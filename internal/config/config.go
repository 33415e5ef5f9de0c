package config

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
)

// Env is the API configuration read from the environment.
type Env struct {
	DatabaseURL   string `env:"DB_CONNECTION_STRING"`
	Port          string `env:"PORT" envDefault:"8080"`
	PublicKeyPath string `env:"PUBLIC_KEY_PATH" envDefault:"/etc/certs/public.pem"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	PulseInterval     time.Duration `env:"PULSE_INTERVAL" envDefault:"10m"`
	PulseTimezone     string        `env:"PULSE_TIMEZONE" envDefault:"UTC"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	NotifyConcurrency int           `env:"NOTIFY_CONCURRENCY" envDefault:"8"`
	InvitationTTL     time.Duration `env:"INVITATION_TTL" envDefault:"24h"`

	FCMProjectID       string `env:"FCM_PROJECT_ID"`
	FCMCredentialsPath string `env:"FCM_CREDENTIALS_PATH"`

	SMTP SMTPConfig

	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON            bool     `env:"LOG_JSON" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Config is the API process configuration with keys and zones resolved.
type Config struct {
	Env

	JWTPublicKey *rsa.PublicKey
	Location     *time.Location
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"noreply@inrem.app"`
}

// Enabled reports whether an SMTP server was configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// FCMEnabled reports whether push delivery through FCM was configured.
func (c Env) FCMEnabled() bool {
	return c.FCMProjectID != "" && c.FCMCredentialsPath != ""
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the API configuration. With inMemory set the database is not
// required, which is how the service runs locally without Postgres.
func Load(inMemory bool) *Config {
	var cfg Config
	if err := ParseEnv(&cfg.Env); err != nil {
		panic(err.Error())
	}

	if cfg.DatabaseURL == "" && !inMemory {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	publicKey, err := loadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		panic("Failed to load public key: " + err.Error())
	}
	cfg.JWTPublicKey = publicKey

	loc, err := time.LoadLocation(cfg.PulseTimezone)
	if err != nil {
		panic("Invalid PULSE_TIMEZONE: " + err.Error())
	}
	cfg.Location = loc

	for i, o := range cfg.CORSAllowedOrigins {
		cfg.CORSAllowedOrigins[i] = strings.TrimSpace(o)
	}
	return &cfg
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return publicKey, nil
}
