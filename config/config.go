/*
Package config loads server settings.

SOURCES (later wins):
  1. Defaults
  2. Environment variables, optionally read from a .env file
  3. Command-line flags

SETTINGS:
  PORT              -port   HTTP server port (8080)
  DB_PATH           -db     SQLite database path (payroll.db, ":memory:" allowed)
  APP_ENV           -env    development | production (selects the zap preset)
  ACCRUAL_INTERVAL          Vacation accrual refresh interval (24h)
  ACCRUAL_ENABLED           Run the accrual refresher (true)
  CORS_ORIGINS              Comma-separated allowed origins

There is no tax-unit setting: the value changes monthly and is always part
of a payroll request.
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the server settings.
type Config struct {
	Port            int
	DBPath          string
	Env             string
	AccrualInterval time.Duration
	AccrualEnabled  bool
	CORSOrigins     []string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:            8080,
		DBPath:          "payroll.db",
		Env:             EnvDevelopment,
		AccrualInterval: 24 * time.Hour,
		AccrualEnabled:  true,
		CORSOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// IsProduction reports whether the production logger preset applies.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// Load reads .env (if present), the environment, then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return Config{}, err
	}

	fsFlags := flag.NewFlagSet("server", flag.ContinueOnError)
	fsFlags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fsFlags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fsFlags.StringVar(&cfg.Env, "env", cfg.Env, "development or production")
	if err := fsFlags.Parse(args); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// FromEnv applies environment variables on top of the defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("APP_ENV"); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if v := getenv("ACCRUAL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("ACCRUAL_INTERVAL: %w", err)
		}
		cfg.AccrualInterval = d
	}
	if v := getenv("ACCRUAL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("ACCRUAL_ENABLED: %w", err)
		}
		cfg.AccrualEnabled = b
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("unknown environment %q", c.Env)
	}
	if c.AccrualInterval <= 0 {
		return fmt.Errorf("accrual interval must be positive, got %s", c.AccrualInterval)
	}
	return nil
}
