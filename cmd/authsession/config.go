package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/repository/mongostore"
	"github.com/nkiryanov/authsession/internal/service/auth/codec"
)

// Session store backends
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const (
	defaultListenAddr     = "localhost:8000"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultSessionStore   = StoreRedis
	defaultTokenFormat    = codec.FormatJWT
	defaultTokenAlgorithm = "HS256"
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Users database to connect to: postgres or mongodb connection string
	// Users are kept in memory if empty (dev environment only)
	DatabaseDSN string

	// Redis to keep sessions in, e.g. redis://localhost:6379/0
	RedisURL string

	// Session store backend: redis, postgres or memory
	SessionStore string

	// Secret key
	// Tokens are signed (or encrypted) with it, so it has to be the same for every instance
	SecretKey string

	// Token format (jwt, paseto) and signing algorithm for jwt
	TokenFormat    string
	TokenAlgorithm string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		SessionStore:   defaultSessionStore,
		TokenFormat:    defaultTokenFormat,
		TokenAlgorithm: defaultTokenAlgorithm,
		AccessTTL:      defaultAccessTTL,
		RefreshTTL:     defaultRefreshTTL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"REDIS_URL":         setString(&c.RedisURL),
		"SESSION_STORE":     setString(&c.SessionStore),
		"SECRET_KEY":        setString(&c.SecretKey),
		"TOKEN_FORMAT":      setString(&c.TokenFormat),
		"TOKEN_ALGORITHM":   setString(&c.TokenAlgorithm),
		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTTL),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authsession", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Users database connection string (postgres or mongodb)")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis connection url")
	fs.StringVar(&c.SessionStore, "session-store", c.SessionStore, "Session store (redis, postgres, memory)")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVar(&c.TokenFormat, "token-format", c.TokenFormat, "Token format (jwt, paseto)")
	fs.StringVar(&c.TokenAlgorithm, "token-algorithm", c.TokenAlgorithm, "JWT signing algorithm (HS256, HS384, HS512)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Check options are consistent. Codec and logger options are checked by their constructors
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must not be empty"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, fmt.Errorf("token lifetimes must be positive and refresh longer than access, got access=%s refresh=%s", c.AccessTTL, c.RefreshTTL))
	}

	if !slices.Contains([]string{StoreRedis, StorePostgres, StoreMemory}, c.SessionStore) {
		errs = append(errs, fmt.Errorf("unknown session store %q", c.SessionStore))
	}
	switch {
	case c.SessionStore == StoreRedis && c.RedisURL == "":
		errs = append(errs, errors.New("redis session store requires redis url"))
	case c.SessionStore == StorePostgres && (c.DatabaseDSN == "" || mongostore.IsMongoURI(c.DatabaseDSN)):
		errs = append(errs, errors.New("postgres session store requires postgres database"))
	case c.SessionStore == StoreMemory && c.Environment != logger.EnvDevelopment:
		errs = append(errs, errors.New("memory session store is allowed in dev environment only"))
	}

	if c.DatabaseDSN == "" && c.Environment != logger.EnvDevelopment {
		errs = append(errs, errors.New("database must be set outside dev environment"))
	}

	return errors.Join(errs...)
}
