package cliparse

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/danielhkuo/connected-mate/auth"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	TokenSalt    string
	JoinCodeSalt string
	BaseURL      string
	LogLevel     string
	LogFormat    string

	// Joins allowed per client IP per minute, and the burst on top
	JoinRatePerMinute int
	JoinBurst         int

	// Keys the client IP hashes held by the join limiter. Derived from
	// TokenSalt when not set.
	RateLimitSalt string

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable it when a reverse proxy in front of the server sets those
	// headers; otherwise clients can pick their own rate limit bucket.
	TrustProxy bool
}

// ParseFlags reads CLI flags, falling back to environment variables (and a
// .env file when present) for anything not given on the command line
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := pflag.NewFlagSet("connected-mate", pflag.ContinueOnError)

	envFile := fs.String("env-file", ".env", "Optional dotenv file to load")

	// Network config (can be CLI args or env)
	fs.IntVarP(&cfg.Port, "port", "p", 0, "Server port")
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", "", "Database URL")
	fs.StringVarP(&cfg.DatabaseType, "database-type", "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Public URL used to build join links")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.TokenSalt, "token-salt", "", "Participant token salt (prefer env)")
	fs.StringVar(&cfg.JoinCodeSalt, "code-salt", "", "Join code salt (prefer env)")
	fs.StringVar(&cfg.RateLimitSalt, "rate-limit-salt", "", "Join rate limiter IP hash salt (prefer env)")

	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format (text, json, auto)")
	fs.IntVar(&cfg.JoinRatePerMinute, "join-rate", 0, "Joins per minute per client IP")
	fs.IntVar(&cfg.JoinBurst, "join-burst", 0, "Join burst per client IP")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Read client IPs from X-Forwarded-For (only behind a reverse proxy)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// A missing .env is normal in production
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "path", *envFile, "error", err)
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", 3318)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envString("DATABASE_TYPE", "sqlite")
	}
	cfg.DatabaseType = strings.ToLower(cfg.DatabaseType)
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = envString("BASE_URL", "http://localhost:"+strconv.Itoa(cfg.Port))
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.LogLevel == "" {
		cfg.LogLevel = envString("LOG_LEVEL", "info")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = envString("LOG_FORMAT", "auto")
	}

	if cfg.JoinRatePerMinute == 0 {
		rate, err := envInt("JOIN_RATE_PER_MINUTE", 30)
		if err != nil {
			return Config{}, err
		}
		cfg.JoinRatePerMinute = rate
	}
	if cfg.JoinBurst == 0 {
		burst, err := envInt("JOIN_BURST", 10)
		if err != nil {
			return Config{}, err
		}
		cfg.JoinBurst = burst
	}

	if !fs.Changed("trust-proxy") {
		trust, err := envBool("TRUST_PROXY", false)
		if err != nil {
			return Config{}, err
		}
		cfg.TrustProxy = trust
	}

	// Secrets - MUST be provided
	if cfg.TokenSalt == "" {
		cfg.TokenSalt = os.Getenv("TOKEN_SALT")
	}
	if cfg.TokenSalt == "" {
		return Config{}, errors.New("TOKEN_SALT required")
	}

	if cfg.JoinCodeSalt == "" {
		cfg.JoinCodeSalt = os.Getenv("JOIN_CODE_SALT")
	}
	if cfg.JoinCodeSalt == "" {
		return Config{}, errors.New("JOIN_CODE_SALT required")
	}

	if cfg.RateLimitSalt == "" {
		cfg.RateLimitSalt = os.Getenv("RATE_LIMIT_SALT")
	}
	if cfg.RateLimitSalt == "" {
		cfg.RateLimitSalt = auth.DeriveKey(cfg.TokenSalt, "join-rate-limit")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable", key)
	}
	return b, nil
}
