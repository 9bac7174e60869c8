package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	UploadDir      string
	MaxUploadBytes int64
	AdminSecret    string
	DebugEndpoints bool
}

// Database captures connection, pool and retry settings for the connection manager.
type Database struct {
	Driver   string
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSL      bool

	PoolSize        int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	AcquireTimeout  time.Duration
	QueryTimeout    time.Duration
	MaxRetries      int
	RecreateDelay   time.Duration
	SkipInit        bool
}

// Retention controls the periodic sweep of old rows and stale upload files.
type Retention struct {
	AutoCleanup bool
	Interval    time.Duration
	RecordAge   RecordAge
	FileMaxAge  time.Duration
}

// RecordAge is a calendar offset; months are applied with time.AddDate so the
// window follows month lengths.
type RecordAge struct {
	Months int
	Days   int
}

// Cutoff returns the instant before which records are considered expired.
func (a RecordAge) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, -a.Months, -a.Days)
}

// Cache configures the optional Redis lookup cache.
type Cache struct {
	RedisURL string
	TTL      time.Duration
}

// Log configures the zerolog root logger.
type Log struct {
	Level  string
	Format string
}

// Config is the full process configuration.
type Config struct {
	Server    Server
	Database  Database
	Retention Retention
	Cache     Cache
	Log       Log
}

var dotEnvFiles = []string{".env", ".env.local"}

// LoadDotEnv copies keys from .env files into the environment without overriding
// variables that were already set by the process environment.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = dotEnvFiles
	}
	for _, path := range paths {
		env, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		for key, val := range env {
			if _, ok := os.LookupEnv(key); ok {
				continue
			}
			_ = os.Setenv(key, val)
		}
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var p parser

	addr := envString("CERTHUB_ADDR", "")
	if addr == "" {
		addr = ":" + envString("PORT", "3001")
	}

	cfg := Config{
		Server: Server{
			Addr:           addr,
			UploadDir:      envString("UPLOAD_DIR", "uploads"),
			MaxUploadBytes: p.int64("MAX_UPLOAD_BYTES", 10<<20),
			AdminSecret:    envString("ADMIN_SECRET", ""),
			DebugEndpoints: p.bool("DEBUG_ENDPOINTS", false),
		},
		Database: Database{
			Driver:          envString("DB_DRIVER", "postgres"),
			URL:             envString("DATABASE_URL", ""),
			Host:            envString("DB_HOST", "localhost"),
			Port:            p.int("DB_PORT", 0),
			User:            envString("DB_USER", "postgres"),
			Password:        envString("DB_PASSWORD", ""),
			Name:            envString("DB_NAME", "certhub"),
			SSL:             p.bool("DB_SSL", false),
			PoolSize:        p.int("DB_POOL_SIZE", 10),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  p.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
			AcquireTimeout:  p.duration("DB_ACQUIRE_TIMEOUT", 5*time.Second),
			QueryTimeout:    p.duration("DB_QUERY_TIMEOUT", 30*time.Second),
			MaxRetries:      p.int("DB_MAX_RETRIES", 5),
			RecreateDelay:   p.duration("DB_RECREATE_DELAY", 5*time.Second),
			SkipInit:        p.bool("SKIP_DB_INIT", false),
		},
		Retention: Retention{
			AutoCleanup: p.bool("AUTO_CLEANUP", true),
			Interval:    p.duration("CLEANUP_INTERVAL", 24*time.Hour),
			RecordAge:   RecordAge{Months: 3},
			FileMaxAge:  p.duration("UPLOAD_MAX_AGE", 7*24*time.Hour),
		},
		Cache: Cache{
			RedisURL: envString("REDIS_URL", ""),
			TTL:      p.duration("CACHE_TTL", 5*time.Minute),
		},
		Log: Log{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}

	if p.err != nil {
		return Config{}, p.err
	}
	if cfg.Database.MaxRetries < 1 {
		return Config{}, fmt.Errorf("DB_MAX_RETRIES must be at least 1, got %d", cfg.Database.MaxRetries)
	}
	if cfg.Database.PoolSize < 1 {
		return Config{}, fmt.Errorf("DB_POOL_SIZE must be at least 1, got %d", cfg.Database.PoolSize)
	}
	if cfg.Retention.Interval <= 0 {
		return Config{}, fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", cfg.Retention.Interval)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.Server.MaxUploadBytes)
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// parser records the first malformed value so FromEnv reports one clear error.
type parser struct {
	err error
}

func (p *parser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s: %w", val, key, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := envString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) int64(key string, def int64) int64 {
	v := envString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.ToLower(envString(key, ""))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	p.fail(key, v, strconv.ErrSyntax)
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := envString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
