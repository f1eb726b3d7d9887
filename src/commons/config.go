package commons

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Release bool
	Listen  string

	ApiUrl         string
	RequestTimeout time.Duration

	SessionStore        string
	SessionTTL          time.Duration
	RedisAddress        string
	RedisMaxConnections int

	PreviewsDir   string
	MaxUploadSize int64

	MaxWorkers         int
	MaxWorkerQueueSize int

	SentryDSN string
	LogLevel  string
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Optional YAML config file")
	fs.Bool("release", false, "Run in release mode")
	fs.String("listen", ":8080", "Address the web server listens on")
	fs.String("api-url", "http://localhost:8000", "Base URL of the prediction service (env API_URL)")
	fs.Duration("request-timeout", 0, "Timeout of a single request to the prediction service, 0 waits forever")
	fs.String("session-store", SessionStoreMemory, "Where page state is kept: memory or redis")
	fs.Duration("session-ttl", time.Hour, "How long an idle session is kept")
	fs.String("redis-address", ":6379", "Address to the Redis server")
	fs.Int("redis-max-connections", 10, "Max connections to Redis")
	fs.String("previews-dir", "../previews/", "Location of the temporary saved images and thumbnails")
	fs.Int64("max-upload-size", 10<<20, "Max size of an uploaded image in bytes")
	fs.Int("max-workers", 5, "The number of workers submitting predictions")
	fs.Int("max-worker-queue-size", 100, "The size of job queue")
	fs.String("sentry-dsn", "", "Sentry DSN, errors are only reported when set")
	fs.String("log-level", "debug", "Log level (debug, info, warn, error)")
	return fs
}

// Load reads the configuration from flags, environment variables and an
// optional config file, in that order of precedence.
func Load(name string, args []string) (*Config, error) {
	fs := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags failed: %w", err)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	cfg := &Config{
		Release:             v.GetBool("release"),
		Listen:              v.GetString("listen"),
		ApiUrl:              v.GetString("api-url"),
		RequestTimeout:      v.GetDuration("request-timeout"),
		SessionStore:        strings.ToLower(v.GetString("session-store")),
		SessionTTL:          v.GetDuration("session-ttl"),
		RedisAddress:        v.GetString("redis-address"),
		RedisMaxConnections: v.GetInt("redis-max-connections"),
		PreviewsDir:         v.GetString("previews-dir"),
		MaxUploadSize:       v.GetInt64("max-upload-size"),
		MaxWorkers:          v.GetInt("max-workers"),
		MaxWorkerQueueSize:  v.GetInt("max-worker-queue-size"),
		SentryDSN:           v.GetString("sentry-dsn"),
		LogLevel:            v.GetString("log-level"),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.ApiUrl == "" {
		return fmt.Errorf("api url is required")
	}
	if !strings.HasPrefix(c.ApiUrl, "http://") && !strings.HasPrefix(c.ApiUrl, "https://") {
		return fmt.Errorf("api url must be an http(s) url, got %q", c.ApiUrl)
	}
	if c.SessionStore != SessionStoreMemory && c.SessionStore != SessionStoreRedis {
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}
	if c.SessionStore == SessionStoreRedis && c.RedisAddress == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.PreviewsDir == "" {
		return fmt.Errorf("previews dir is required")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("at least one worker is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout can't be negative")
	}
	return nil
}
