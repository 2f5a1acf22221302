package cache_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blobgate/internal/cache"

	"github.com/stretchr/testify/require"
)

// countingHandler answers every request with a fixed body and counts calls.
type countingHandler struct {
	calls        atomic.Int32
	status       int
	cacheControl string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	if h.cacheControl != "" {
		w.Header().Set("Cache-Control", h.cacheControl)
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Request-Id", "per-request")
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, "payload "+r.URL.Path)
}

func do(t *testing.T, h http.Handler, method string, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), method, target, nil))
	return rec
}

func TestMiddlewareServesRepeatedGETFromCache(t *testing.T) {
	t.Parallel()

	next := &countingHandler{cacheControl: "public, max-age=86400"}
	h := cache.Middleware(cache.NewMemoryCache(16, 24*time.Hour), time.Minute)(next)

	first := do(t, h, http.MethodGet, "http://example.com/abc.txt")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(t, h, http.MethodGet, "http://example.com/abc.txt")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "HIT", second.Header().Get("X-Cache"))
	require.Equal(t, "payload /abc.txt", second.Body.String())
	require.Equal(t, "text/plain", second.Header().Get("Content-Type"))
	require.Equal(t, "public, max-age=86400", second.Header().Get("Cache-Control"))
	require.Empty(t, second.Header().Get("X-Request-Id"), "per-request headers are not replayed")

	require.EqualValues(t, 1, next.calls.Load(), "handler should run once")
}

func TestMiddlewareKeysOnFullURL(t *testing.T) {
	t.Parallel()

	next := &countingHandler{}
	h := cache.Middleware(cache.NewMemoryCache(16, time.Hour), time.Minute)(next)

	do(t, h, http.MethodGet, "http://example.com/a.txt")
	do(t, h, http.MethodGet, "http://example.com/b.txt")
	do(t, h, http.MethodGet, "http://other.example.com/a.txt")
	do(t, h, http.MethodGet, "http://example.com/a.txt?v=2")

	require.EqualValues(t, 4, next.calls.Load(), "distinct URLs are distinct entries")
}

func TestMiddlewareSkipsNonGET(t *testing.T) {
	t.Parallel()

	next := &countingHandler{}
	h := cache.Middleware(cache.NewMemoryCache(16, time.Hour), time.Minute)(next)

	for range 2 {
		rec := do(t, h, http.MethodDelete, "http://example.com/a.txt")
		require.Empty(t, rec.Header().Get("X-Cache"))
	}
	require.EqualValues(t, 2, next.calls.Load())
}

func TestMiddlewareDoesNotStoreErrors(t *testing.T) {
	t.Parallel()

	next := &countingHandler{status: http.StatusNotFound}
	h := cache.Middleware(cache.NewMemoryCache(16, time.Hour), time.Minute)(next)

	do(t, h, http.MethodGet, "http://example.com/missing.txt")
	rec := do(t, h, http.MethodGet, "http://example.com/missing.txt")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.EqualValues(t, 2, next.calls.Load(), "404 responses are not cached")
}

func TestMiddlewareRespectsNoStore(t *testing.T) {
	t.Parallel()

	next := &countingHandler{cacheControl: "no-store"}
	h := cache.Middleware(cache.NewMemoryCache(16, time.Hour), time.Minute)(next)

	do(t, h, http.MethodGet, "http://example.com/a.txt")
	do(t, h, http.MethodGet, "http://example.com/a.txt")
	require.EqualValues(t, 2, next.calls.Load())
}

func TestMiddlewareInvalidation(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(16, time.Hour)
	next := &countingHandler{}
	h := cache.Middleware(c, time.Minute)(next)

	do(t, h, http.MethodGet, "http://example.com/a.txt")

	r := httptest.NewRequest(http.MethodDelete, "http://example.com/a.txt", nil)
	require.NoError(t, c.Delete(t.Context(), cache.KeyFor(r, "/a.txt")))

	rec := do(t, h, http.MethodGet, "http://example.com/a.txt")
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	require.EqualValues(t, 2, next.calls.Load())
}

func TestMiddlewareSharesEntryAcrossEncodings(t *testing.T) {
	t.Parallel()

	next := &countingHandler{}
	h := cache.Middleware(cache.NewMemoryCache(16, time.Hour), time.Minute)(next)

	for _, encoding := range []string{"", "gzip", "br, gzip"} {
		req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/a.txt", nil)
		if encoding != "" {
			req.Header.Set("Accept-Encoding", encoding)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "payload /a.txt", rec.Body.String())
	}
	require.EqualValues(t, 1, next.calls.Load(), "one entry serves every Accept-Encoding")
}

func TestMiddlewareDisabled(t *testing.T) {
	t.Parallel()

	next := &countingHandler{}
	h := cache.Middleware(nil, time.Minute)(next)

	do(t, h, http.MethodGet, "http://example.com/a.txt")
	rec := do(t, h, http.MethodGet, "http://example.com/a.txt")
	require.Empty(t, rec.Header().Get("X-Cache"))
	require.EqualValues(t, 2, next.calls.Load())
}
