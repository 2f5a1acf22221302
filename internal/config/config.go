// Package config loads blobgate runtime configuration from command line
// flags, environment variables and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds all runtime configuration for the gateway.
type Config struct {
	Listen      string
	ListenHTTPS string
	TLSCertFile string
	TLSKeyFile  string

	PublicURL         string
	TrustProxyHeaders bool
	Title             string

	// Username and Password are the single credential pair guarding
	// uploads and deletes.
	Username string
	Password string

	MaxUploadSize int64
	LogLevel      log.Level

	StorageBackend string
	DataDir        string

	// Object storage (S3-compatible)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	CacheBackend string
	CacheSize    int
	CacheTTL     time.Duration
	RedisURL     string
}

// HTTPSEnabled reports whether both TLS files were configured.
func (c Config) HTTPSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Load reads a .env file (if present), then parses args with defaults taken
// from the environment. Flags win over the environment.
func Load(args []string) (Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()
	return parse(args, os.Getenv)
}

func parse(args []string, getenv func(string) string) (Config, error) {
	var (
		cfg      Config
		logLevel string
		maxSize  int64
		cacheTTL time.Duration
		err      error
	)

	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	fs := flag.NewFlagSet("blobgate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Listen, "listen", env("LISTEN", ":9000"), "HTTP listen address")
	fs.StringVar(&cfg.ListenHTTPS, "listen-https", env("LISTEN_HTTPS", ":8443"), "HTTPS listen address")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", env("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", env("TLS_KEY_FILE", ""), "TLS private key file")

	fs.StringVar(&cfg.PublicURL, "public-url", env("PUBLIC_URL", ""), "base URL used in upload responses")
	fs.StringVar(&cfg.Title, "title", env("TITLE", "blobgate"), "title of the upload page")
	fs.StringVar(&cfg.Username, "username", env("USERNAME", ""), "username for uploads and deletes")
	fs.StringVar(&cfg.Password, "password", env("PASSWORD", ""), "password for uploads and deletes")
	fs.StringVar(&logLevel, "log-level", env("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	fs.StringVar(&cfg.StorageBackend, "storage", env("STORAGE_BACKEND", StorageLocal), "storage backend (local, s3)")
	fs.StringVar(&cfg.DataDir, "data-dir", env("DATA_DIR", "./data"), "directory to store object data")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", env("STORAGE_ENDPOINT", "localhost:9000"), "S3 endpoint host:port")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", env("STORAGE_ACCESS_KEY", ""), "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", env("STORAGE_SECRET_KEY", ""), "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", env("STORAGE_BUCKET", "blobgate"), "S3 bucket")
	fs.StringVar(&cfg.S3Region, "s3-region", env("STORAGE_REGION", ""), "S3 region")

	fs.StringVar(&cfg.CacheBackend, "cache", env("CACHE_BACKEND", CacheMemory), "response cache (memory, redis, none)")
	fs.StringVar(&cfg.RedisURL, "redis-url", env("REDIS_URL", "redis://localhost:6379/0"), "Redis URL for the redis cache")

	trustProxy, err := envBool(getenv, "TRUST_PROXY_HEADERS", false)
	if err != nil {
		return Config{}, err
	}
	fs.BoolVar(&cfg.TrustProxyHeaders, "trust-proxy-headers", trustProxy, "honour X-Forwarded-Proto and X-Forwarded-Host")

	useSSL, err := envBool(getenv, "STORAGE_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	fs.BoolVar(&cfg.S3UseSSL, "s3-ssl", useSSL, "use TLS for the S3 endpoint")

	defaultMax, err := strconv.ParseInt(env("MAX_UPLOAD_SIZE", strconv.Itoa(100<<20)), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
	}
	fs.Int64Var(&maxSize, "max-upload-size", defaultMax, "maximum upload request size in bytes")

	defaultCacheSize, err := strconv.Atoi(env("CACHE_SIZE", "1024"))
	if err != nil {
		return Config{}, fmt.Errorf("CACHE_SIZE: %w", err)
	}
	fs.IntVar(&cfg.CacheSize, "cache-size", defaultCacheSize, "maximum entries in the memory cache")

	defaultTTL, err := time.ParseDuration(env("CACHE_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("CACHE_TTL: %w", err)
	}
	fs.DurationVar(&cacheTTL, "cache-ttl", defaultTTL, "lifetime of cached responses without max-age")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.MaxUploadSize = maxSize
	cfg.CacheTTL = cacheTTL
	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)

	if cfg.LogLevel, err = log.ParseLevel(logLevel); err != nil {
		return Config{}, fmt.Errorf("log level: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.Username == "" || c.Password == "" {
		errs = append(errs, errors.New("username and password must both be set"))
	}

	if c.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data dir must be set for local storage"))
		}
	case StorageS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			errs = append(errs, errors.New("s3 endpoint and bucket must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	switch c.CacheBackend {
	case CacheMemory:
		if c.CacheSize <= 0 {
			errs = append(errs, errors.New("cache size must be positive"))
		}
	case CacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis url must be set for the redis cache"))
		}
	case CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}

	return errors.Join(errs...)
}

func envBool(getenv func(string) string, key string, fallback bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
