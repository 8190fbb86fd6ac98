// Package config loads server and client configuration from the environment
// and command-line flags. Flags override environment values.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Limiter backends.
const (
	LimiterPostgres = "postgres"
	LimiterRedis    = "redis"
	LimiterNone     = "none"
)

// Server is the HTTP server configuration.
type Server struct {
	Addr            string        `env:"SD_ADDR" envDefault:":8080"`
	DSN             string        `env:"SD_DSN"`
	MaxConns        int           `env:"SD_DB_MAX_CONNS" envDefault:"10"`
	AccessSecret    string        `env:"SD_ACCESS_SECRET"`
	RefreshSecret   string        `env:"SD_REFRESH_SECRET"`
	AccessTTL       time.Duration `env:"SD_ACCESS_TTL" envDefault:"168h"`
	RefreshTTL      time.Duration `env:"SD_REFRESH_TTL" envDefault:"720h"`
	BcryptCost      int           `env:"SD_BCRYPT_COST" envDefault:"12"`
	HistoryLimit    int           `env:"SD_HISTORY_LIMIT" envDefault:"10"`
	Limiter         string        `env:"SD_LIMITER" envDefault:"postgres"`
	RedisAddr       string        `env:"SD_REDIS_ADDR" envDefault:"localhost:6379"`
	LimitWindow     time.Duration `env:"SD_LIMIT_WINDOW" envDefault:"15m"`
	LimitMaxFails   int           `env:"SD_LIMIT_MAX_FAILS" envDefault:"5"`
	LimitBlockFor   time.Duration `env:"SD_LIMIT_BLOCK_FOR" envDefault:"15m"`
	ShutdownTimeout time.Duration `env:"SD_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Dev             bool          `env:"SD_DEV"`
}

// LoadServer reads SD_* variables, then applies flags from args.
func LoadServer(args []string) (Server, error) {
	var c Server
	if err := env.Parse(&c); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("sd-server", flag.ContinueOnError)
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "PostgreSQL DSN (empty: in-memory store, dev only)")
	fs.IntVar(&c.MaxConns, "db-max-conns", c.MaxConns, "max pool connections")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "HS256 key for access tokens (required)")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "HS256 key for refresh tokens (required)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "refresh token lifetime")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", c.BcryptCost, "bcrypt cost factor")
	fs.IntVar(&c.HistoryLimit, "history-limit", c.HistoryLimit, "documents returned by /auth/me")
	fs.StringVar(&c.Limiter, "limiter", c.Limiter, "login limiter backend: postgres, redis or none")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address for the redis limiter")
	fs.DurationVar(&c.LimitWindow, "limit-window", c.LimitWindow, "failed-login counting window")
	fs.IntVar(&c.LimitMaxFails, "limit-max-fails", c.LimitMaxFails, "failed logins before a block")
	fs.DurationVar(&c.LimitBlockFor, "limit-block-for", c.LimitBlockFor, "block duration")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development mode: console logging, in-memory store allowed")
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}
	return c, c.Validate()
}

// Validate checks invariants that would otherwise fail at first use.
func (c Server) Validate() error {
	var problems []error
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		problems = append(problems, errors.New("access and refresh secrets are required"))
	} else if c.AccessSecret == c.RefreshSecret {
		problems = append(problems, errors.New("access and refresh secrets must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		problems = append(problems, errors.New("token lifetimes must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Errorf("bcrypt cost must be in [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.HistoryLimit < 0 {
		problems = append(problems, errors.New("history limit must not be negative"))
	}
	if c.DSN == "" && !c.Dev {
		problems = append(problems, errors.New("dsn is required outside dev mode"))
	}
	if c.MaxConns <= 0 {
		problems = append(problems, errors.New("db max conns must be positive"))
	}
	switch c.Limiter {
	case LimiterNone:
	case LimiterPostgres:
		if c.DSN == "" {
			problems = append(problems, errors.New("postgres limiter needs a dsn"))
		}
	case LimiterRedis:
		if c.RedisAddr == "" {
			problems = append(problems, errors.New("redis limiter needs a redis address"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown limiter %q", c.Limiter))
	}
	if c.Limiter != LimiterNone && (c.LimitWindow <= 0 || c.LimitMaxFails <= 0 || c.LimitBlockFor <= 0) {
		problems = append(problems, errors.New("limiter window, max fails and block duration must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		problems = append(problems, errors.New("shutdown timeout must be positive"))
	}
	return errors.Join(problems...)
}

// Client is the CLI configuration.
type Client struct {
	Server         string        `env:"SD_SERVER" envDefault:"http://localhost:8080"`
	DBPath         string        `env:"SD_SESSION_DB"`
	RequestTimeout time.Duration `env:"SD_REQUEST_TIMEOUT" envDefault:"30s"`
	RefreshTimeout time.Duration `env:"SD_REFRESH_TIMEOUT" envDefault:"10s"`
	Verbose        bool          `env:"SD_VERBOSE"`
}

// LoadClient reads SD_* variables. The token database defaults to
// <user config dir>/simplidoc/session.db.
func LoadClient() (Client, error) {
	var c Client
	if err := env.Parse(&c); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	if c.DBPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Client{}, fmt.Errorf("locate config dir: %w", err)
		}
		c.DBPath = filepath.Join(dir, "simplidoc", "session.db")
	}
	return c, nil
}

// Validate checks the client configuration.
func (c Client) Validate() error {
	var problems []error
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Errorf("server must be an http(s) URL, got %q", c.Server))
	}
	if c.DBPath == "" {
		problems = append(problems, errors.New("session db path is required"))
	}
	if c.RequestTimeout <= 0 || c.RefreshTimeout <= 0 {
		problems = append(problems, errors.New("timeouts must be positive"))
	}
	return errors.Join(problems...)
}
