// Package cache implements the shared read-through response cache that sits
// in front of all GET traffic.
package cache

import (
	"context"
	"net/http"
	"time"
)

// Entry is a complete cached HTTP response.
type Entry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// ResponseCache stores responses by request key. A miss is reported as
// (nil, false, nil).
type ResponseCache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RequestKey returns the cache key for a GET of r's URL.
func RequestKey(r *http.Request) string {
	return KeyFor(r, r.URL.RequestURI())
}

// KeyFor returns the cache key for a GET of requestURI on the same scheme
// and host as r. Handlers use it to invalidate entries after a write.
func KeyFor(r *http.Request, requestURI string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return OriginKey(scheme+"://"+r.Host, requestURI)
}

// OriginKey returns the cache key for a GET of requestURI on origin, given
// as scheme://host. Responses do not vary by request header, so headers
// play no part in the key.
func OriginKey(origin string, requestURI string) string {
	return http.MethodGet + " " + origin + requestURI
}
