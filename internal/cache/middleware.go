package cache

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers that describe a single exchange rather than the resource.
var uncachedHeaders = []string{"Date", "Set-Cookie", "X-Cache", "X-Request-Id"}

// recorder passes a response through to the client while keeping a copy.
type recorder struct {
	http.ResponseWriter
	status int
	header http.Header
	body   bytes.Buffer
}

func (rw *recorder) WriteHeader(statusCode int) {
	if rw.status != 0 {
		return
	}
	rw.status = statusCode
	rw.header = rw.ResponseWriter.Header().Clone()
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.WriteHeader(http.StatusOK)
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// cacheTTL decides whether a response may be stored and for how long,
// following its Cache-Control header.
func cacheTTL(header http.Header, defaultTTL time.Duration) (time.Duration, bool) {
	if header.Get("Set-Cookie") != "" {
		return 0, false
	}

	ttl := defaultTTL
	var shared bool
	for _, directive := range strings.Split(header.Get("Cache-Control"), ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(strings.ToLower(directive)), "=")
		switch name {
		case "no-store", "private", "no-cache":
			return 0, false
		case "max-age", "s-maxage":
			seconds, err := strconv.Atoi(strings.Trim(value, `"`))
			if err != nil {
				continue
			}
			// s-maxage wins over max-age for a shared cache.
			if name == "max-age" && shared {
				continue
			}
			shared = name == "s-maxage"
			ttl = time.Duration(seconds) * time.Second
		}
	}

	return ttl, ttl > 0
}

func replay(w http.ResponseWriter, entry *Entry) {
	for key, values := range entry.Header {
		w.Header()[key] = values
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
}

// Middleware serves GET requests from c when possible and stores cacheable
// 200 responses. Other methods pass straight through. Cache failures are
// logged and the request is served as a miss. A nil c disables caching.
func Middleware(c ResponseCache, defaultTTL time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := RequestKey(r)

			entry, ok, err := c.Get(ctx, key)
			if err != nil {
				slog.Warn("Cache lookup failed", "key", key, "err", err)
			}
			if ok {
				replay(w, entry)
				return
			}

			w.Header().Set("X-Cache", "MISS")
			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}

			ttl, cacheable := cacheTTL(rec.header, defaultTTL)
			if !cacheable {
				return
			}

			header := rec.header.Clone()
			for _, name := range uncachedHeaders {
				header.Del(name)
			}

			if err := c.Set(ctx, key, &Entry{Status: rec.status, Header: header, Body: rec.body.Bytes()}, ttl); err != nil {
				slog.Warn("Cache store failed", "key", key, "err", err)
			}
		})
	}
}
