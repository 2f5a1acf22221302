package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"blobgate/internal/cache"
	"blobgate/internal/keygen"
)

const (
	// CacheControl is attached to every object served by key.
	CacheControl = "public, max-age=86400"

	// UploadPath receives multipart uploads.
	UploadPath = "/_upload"
)

// Server is the HTTP gateway in front of an ObjectStore.
type Server struct {
	Config Config
	keys   *keygen.Generator

	// publicOrigin is scheme://host of Config.PublicURL, or empty.
	publicOrigin string
}

// NewServer validates cfg, fills in defaults and returns a new Server.
func NewServer(cfg Config) (*Server, error) {

	if cfg.Store == nil {
		return nil, errors.New("object store must not be nil")
	}

	// A nil authenticator would leave uploads and deletes open.
	if cfg.Authenticator == nil {
		return nil, errors.New("authenticator must not be nil")
	}

	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	if cfg.Title == "" {
		cfg.Title = "blobgate"
	}

	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	var publicOrigin string
	if cfg.PublicURL != "" {
		u, err := url.Parse(cfg.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("public url %q must be absolute", cfg.PublicURL)
		}
		publicOrigin = strings.ToLower(u.Scheme) + "://" + u.Host
	}

	return &Server{
		Config:       cfg,
		keys:         keygen.NewGenerator(cfg.Store, cfg.Random),
		publicOrigin: publicOrigin,
	}, nil
}

// origin returns scheme://host for URLs handed back to clients.
func (s *Server) origin(r *http.Request) string {
	if s.Config.PublicURL != "" {
		return s.Config.PublicURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if s.Config.TrustProxyHeaders {
		switch proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto {
		case "http", "https":
			scheme = proto
		}
		if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
			host = fwdHost
		}
	}

	return scheme + "://" + host
}

// invalidate drops the cached GET responses for escapedPath, if any. Reads
// may arrive on the public host while writes arrive on an internal one, so
// both origins are cleared.
func (s *Server) invalidate(ctx context.Context, r *http.Request, escapedPath string) {
	if s.Config.Cache == nil {
		return
	}

	keys := []string{cache.KeyFor(r, escapedPath)}
	if s.publicOrigin != "" {
		if key := cache.OriginKey(s.publicOrigin, escapedPath); key != keys[0] {
			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		if err := s.Config.Cache.Delete(ctx, key); err != nil {
			slog.Warn("Cache invalidation failed", "key", key, "err", err)
		}
	}
}

// writeText writes a plain-text response body.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeInternalError writes a generic 500 response.
func writeInternalError(w http.ResponseWriter) {
	writeText(w, http.StatusInternalServerError, "Internal Server Error")
}
