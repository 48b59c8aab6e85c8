// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"custodycore/internal/blob"
	blobcore "custodycore/internal/blob/core"
	"custodycore/internal/cache"
	"custodycore/internal/core"
	"custodycore/internal/documents"
	s3blob "custodycore/internal/infra/blob/s3"
)

// EnvPrefix starts every variable read by Load.
const EnvPrefix = "CUSTODY_"

// CacheDriver selects the configuration list cache.
type CacheDriver string

// Cache drivers.
const (
	CacheMemory CacheDriver = "memory"
	CacheRedis  CacheDriver = "redis"
)

// CacheConfig configures the configuration list cache.
type CacheConfig struct {
	Driver CacheDriver
	TTL    time.Duration
	Redis  cache.RedisConfig
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Config stores all settings of the service.
type Config struct {
	HTTPAddr   string
	LogLevel   string
	LogFormat  string
	Metrics    bool
	TraceFile  string
	Storage    core.StorageConfig
	Blob       blob.Config
	Cache      CacheConfig
	Documents  documents.Config
	Dispatcher core.DispatcherConfig
	RateLimit  RateLimitConfig
}

// Load reads the given .env files (".env" when none are named), then the
// process environment. Missing .env files are ignored; variables already set
// in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a validated Config from lookup.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		HTTPAddr:  e.str("HTTP_ADDR", ":8080"),
		LogLevel:  strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "json")),
		Metrics:   e.bool("METRICS_ENABLED", true),
		TraceFile: e.str("TRACE_FILE", ""),
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(strings.ToLower(e.str("STORAGE_DRIVER", string(core.StorageSQLite)))),
			SQLitePath:  e.str("SQLITE_PATH", "custodycore.db"),
			PostgresDSN: e.str("POSTGRES_DSN", ""),
			PoolName:    e.str("POOL_NAME", "Stock"),
		},
		Blob: blob.Config{
			Driver: blobcore.Driver(strings.ToLower(e.str("BLOB_DRIVER", string(blobcore.DriverFilesystem)))),
			FSRoot: e.str("BLOB_FS_ROOT", "./blobdata"),
			FSBase: e.str("BLOB_FS_BASE_URL", ""),
			S3: s3blob.Config{
				Region:          e.str("S3_REGION", "us-east-1"),
				Bucket:          e.str("S3_BUCKET", ""),
				Endpoint:        e.str("S3_ENDPOINT", ""),
				AccessKeyID:     e.str("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: e.str("S3_SECRET_ACCESS_KEY", ""),
				SessionToken:    e.str("S3_SESSION_TOKEN", ""),
				PathStyle:       e.bool("S3_PATH_STYLE", false),
			},
		},
		Cache: CacheConfig{
			Driver: CacheDriver(strings.ToLower(e.str("CACHE_DRIVER", string(CacheMemory)))),
			TTL:    e.duration("CACHE_TTL", core.DefaultCacheTTL),
			Redis: cache.RedisConfig{
				Addr:     e.str("REDIS_ADDR", "localhost:6379"),
				Password: e.str("REDIS_PASSWORD", ""),
				DB:       e.int("REDIS_DB", 0),
				Prefix:   e.str("REDIS_PREFIX", "custodycore:"),
			},
		},
		Documents: documents.Config{
			Driver:          documents.Driver(strings.ToLower(e.str("DOCUMENTS_DRIVER", string(documents.DriverLog)))),
			InventoryPrefix: e.str("INVENTORY_PREFIX", documents.DefaultInventoryPrefix),
			DeliveredBy:     e.str("DELIVERED_BY", "IT Department"),
			TemplatePath:    e.str("CERTIFICATE_TEMPLATE", ""),
			SMTP: documents.SMTPConfig{
				Host:     e.str("SMTP_HOST", ""),
				Port:     e.int("SMTP_PORT", 587),
				Username: e.str("SMTP_USERNAME", ""),
				Password: e.str("SMTP_PASSWORD", ""),
				From:     e.str("SMTP_FROM", ""),
			},
			MQTT: documents.MQTTConfig{
				BrokerURL: e.str("MQTT_BROKER_URL", ""),
				ClientID:  e.str("MQTT_CLIENT_ID", "custodycore"),
				Username:  e.str("MQTT_USERNAME", ""),
				Password:  e.str("MQTT_PASSWORD", ""),
				Topic:     e.str("MQTT_TOPIC", documents.DefaultMQTTTopic),
				Timeout:   e.duration("MQTT_TIMEOUT", 5*time.Second),
			},
		},
		Dispatcher: core.DispatcherConfig{
			Interval:    e.duration("OUTBOX_INTERVAL", 30*time.Second),
			BaseBackoff: e.duration("OUTBOX_BASE_BACKOFF", 30*time.Second),
			MaxBackoff:  e.duration("OUTBOX_MAX_BACKOFF", 30*time.Minute),
			MaxAttempts: e.int("OUTBOX_MAX_ATTEMPTS", 5),
			BatchSize:   e.int("OUTBOX_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			RPS:   e.float("RATE_LIMIT_RPS", 10),
			Burst: e.int("RATE_LIMIT_BURST", 20),
		},
	}
	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("CUSTODY_POSTGRES_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case blobcore.DriverFilesystem, blobcore.DriverMemory:
	case blobcore.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("CUSTODY_S3_BUCKET is required for the s3 blob driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("CUSTODY_REDIS_ADDR is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}
	switch c.Documents.Driver {
	case documents.DriverLog:
	case documents.DriverSMTP:
		if c.Documents.SMTP.Host == "" || c.Documents.SMTP.From == "" {
			errs = append(errs, errors.New("CUSTODY_SMTP_HOST and CUSTODY_SMTP_FROM are required for the smtp driver"))
		}
	case documents.DriverMQTT:
		if c.Documents.MQTT.BrokerURL == "" {
			errs = append(errs, errors.New("CUSTODY_MQTT_BROKER_URL is required for the mqtt driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown documents driver %q", c.Documents.Driver))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit values must not be negative"))
	}
	return errors.Join(errs...)
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return v
}

func (e *env) float(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return v
}

func (e *env) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return v
}

// duration accepts Go durations ("90s") or a bare number of seconds.
func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return def
	}
	return v
}
