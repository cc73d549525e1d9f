package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultInviteKey 仅供本地开发使用，非 dev 环境必须覆盖。
const DefaultInviteKey = "dev-invite-key-change-me"

type Config struct {
	Port        string `env:"APP_PORT" envDefault:"8080"`
	Env         string `env:"APP_ENV" envDefault:"dev"`
	AppHost     string `env:"APP_HOST" envDefault:"http://localhost:5173"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=roomchat port=5432 sslmode=disable TimeZone=UTC"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DevOrigin   string `env:"DEV_ORIGIN"`

	InviteKey string `env:"INVITE_KEY" envDefault:"dev-invite-key-change-me"`

	IdentityURL        string        `env:"IDENTITY_URL"`
	IdentityAnonKey    string        `env:"IDENTITY_ANON_KEY"`
	IdentityServiceKey string        `env:"IDENTITY_SERVICE_KEY"`
	IdentityJWTSecret  string        `env:"IDENTITY_JWT_SECRET"`
	IdentityTimeout    time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"5s"`

	RedisAddr    string        `env:"REDIS_ADDR"`
	UserCacheTTL time.Duration `env:"USER_CACHE_TTL" envDefault:"10m"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Load 先尝试加载 .env，再从环境变量解析配置。
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.IdentityTimeout <= 0 {
		cfg.IdentityTimeout = 5 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	return cfg, nil
}

// LoginURL 是鉴权失败时的重定向地址。
func (c Config) LoginURL() string {
	return strings.TrimRight(c.AppHost, "/") + "/login"
}

func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	if cfg.AppHost == "" {
		return errors.New("APP_HOST is required")
	}
	if cfg.InviteKey == "" {
		return errors.New("INVITE_KEY is required")
	}
	if cfg.Env != "dev" && cfg.InviteKey == DefaultInviteKey {
		return errors.New("INVITE_KEY must be changed outside dev")
	}
	if cfg.IdentityURL == "" && cfg.IdentityJWTSecret == "" {
		return errors.New("IDENTITY_URL or IDENTITY_JWT_SECRET is required")
	}
	return nil
}
