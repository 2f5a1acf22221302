package gateway

import (
	"time"

	"blobgate/internal/auth"
	"blobgate/internal/cache"
	"blobgate/internal/keygen"
	"blobgate/internal/storage"
)

const (
	// DefaultMaxUploadSize bounds the request body of an upload. The whole
	// file is held in memory while it is stored.
	DefaultMaxUploadSize = 100 << 20

	// DefaultCacheTTL applies to cached responses that carry no max-age.
	DefaultCacheTTL = 24 * time.Hour
)

type Config struct {
	Store         storage.ObjectStore
	Authenticator auth.AuthEngine
	Random        keygen.RandomSource

	// Cache, when set, serves repeated GET requests without reaching the
	// handlers.
	Cache    cache.ResponseCache
	CacheTTL time.Duration

	// PublicURL overrides the request origin in returned upload URLs.
	PublicURL string

	// TrustProxyHeaders makes the request origin honour X-Forwarded-Proto
	// and X-Forwarded-Host.
	TrustProxyHeaders bool

	MaxUploadSize int64
	Title         string
}

type ConfigOption func(*Config)

func WithObjectStore(store storage.ObjectStore) ConfigOption {
	return func(cfg *Config) {
		cfg.Store = store
	}
}

func WithAuthEngine(authenticator auth.AuthEngine) ConfigOption {
	return func(cfg *Config) {
		cfg.Authenticator = authenticator
	}
}

func WithRandomSource(random keygen.RandomSource) ConfigOption {
	return func(cfg *Config) {
		cfg.Random = random
	}
}

func WithResponseCache(c cache.ResponseCache, ttl time.Duration) ConfigOption {
	return func(cfg *Config) {
		cfg.Cache = c
		cfg.CacheTTL = ttl
	}
}

func WithPublicURL(publicURL string) ConfigOption {
	return func(cfg *Config) {
		cfg.PublicURL = publicURL
	}
}

func WithTrustProxyHeaders(trust bool) ConfigOption {
	return func(cfg *Config) {
		cfg.TrustProxyHeaders = trust
	}
}

func WithMaxUploadSize(size int64) ConfigOption {
	return func(cfg *Config) {
		cfg.MaxUploadSize = size
	}
}

func WithTitle(title string) ConfigOption {
	return func(cfg *Config) {
		cfg.Title = title
	}
}

func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
