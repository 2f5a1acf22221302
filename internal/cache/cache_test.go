package cache

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *Entry {
	return &Entry{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"image/png"}},
		Body:   []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(16, time.Hour)
	ctx := t.Context()

	_, ok, err := c.Get(ctx, "GET http://example.com/a.png")
	require.NoError(t, err)
	require.False(t, ok, "empty cache should miss")

	require.NoError(t, c.Set(ctx, "GET http://example.com/a.png", sampleEntry(), time.Minute))

	entry, ok, err := c.Get(ctx, "GET http://example.com/a.png")
	require.NoError(t, err)
	require.True(t, ok, "expected hit after Set")
	require.Equal(t, sampleEntry(), entry)

	require.NoError(t, c.Delete(ctx, "GET http://example.com/a.png"))
	_, ok, err = c.Get(ctx, "GET http://example.com/a.png")
	require.NoError(t, err)
	require.False(t, ok, "expected miss after Delete")
}

func TestMemoryCacheHonoursEntryTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(16, time.Hour)
	c.now = func() time.Time { return now }
	ctx := t.Context()

	require.NoError(t, c.Set(ctx, "k", sampleEntry(), 30*time.Second))

	now = now.Add(29 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	require.True(t, ok, "entry should still be fresh")

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	require.False(t, ok, "entry should have expired")
}

func TestRedisCacheRoundTrip(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err, "start miniredis")
	t.Cleanup(mr.Close)

	c, err := NewRedisCache("redis://"+mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := t.Context()

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "empty cache should miss")

	require.NoError(t, c.Set(ctx, "k", sampleEntry(), time.Minute))
	require.True(t, mr.Exists("test:k"), "entry should be namespaced")

	entry, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "expected hit after Set")
	require.Equal(t, sampleEntry(), entry)

	mr.FastForward(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "entry should expire with its TTL")

	require.NoError(t, c.Set(ctx, "k", sampleEntry(), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "expected miss after Delete")
}

func TestNewRedisCacheBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache("not a url", "")
	require.Error(t, err)
}

func TestRequestKey(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "http://img.example.com/abc.png?w=10", nil)
	require.Equal(t, "GET http://img.example.com/abc.png?w=10", RequestKey(r))
	require.Equal(t, "GET http://img.example.com/other.png", KeyFor(r, "/other.png"))

	r.TLS = &tls.ConnectionState{}
	require.Equal(t, "GET https://img.example.com/abc.png?w=10", RequestKey(r))

	r.Header.Set("Accept-Encoding", "gzip")
	require.Equal(t, "GET https://img.example.com/abc.png?w=10", RequestKey(r), "request headers are not part of the key")

	require.Equal(t, "GET https://cdn.example.com/abc.png", OriginKey("https://cdn.example.com", "/abc.png"))
	require.Equal(t, KeyFor(r, "/abc.png"), OriginKey("https://img.example.com", "/abc.png"))
}

func TestCacheTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		header    http.Header
		wantTTL   time.Duration
		cacheable bool
	}{
		{name: "default", header: http.Header{}, wantTTL: time.Minute, cacheable: true},
		{name: "max-age", header: http.Header{"Cache-Control": {"public, max-age=86400"}}, wantTTL: 24 * time.Hour, cacheable: true},
		{name: "s-maxage wins", header: http.Header{"Cache-Control": {"s-maxage=10, max-age=100"}}, wantTTL: 10 * time.Second, cacheable: true},
		{name: "zero max-age", header: http.Header{"Cache-Control": {"max-age=0"}}, cacheable: false},
		{name: "no-store", header: http.Header{"Cache-Control": {"no-store"}}, cacheable: false},
		{name: "private", header: http.Header{"Cache-Control": {"private, max-age=60"}}, cacheable: false},
		{name: "cookie", header: http.Header{"Set-Cookie": {"session=1"}}, cacheable: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ttl, ok := cacheTTL(tc.header, time.Minute)
			require.Equal(t, tc.cacheable, ok)
			if tc.cacheable {
				require.Equal(t, tc.wantTTL, ttl)
			}
		})
	}
}
