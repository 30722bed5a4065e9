package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-rental/internal/config"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip_device_route", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/v1/rooms", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb))

	call := func(device string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
		req.AddCookie(&http.Cookie{Name: DeviceIDCookie, Value: device})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, call("a").Code)
	assert.Equal(t, http.StatusOK, call("a").Code)
	blocked := call("a")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// separate device, separate bucket
	assert.Equal(t, http.StatusOK, call("b").Code)
}

func TestTokenBucket_DisabledOrNoRedis(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRedisCache_HitMissAndPurge(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache:rooms",
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/rooms", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, NewRedisCache(cfg, rdb))

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms?sort=price_asc", nil))
		return rec
	}
	first := get()
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get()
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	n, err := PurgeCache(context.Background(), rdb, cfg.Prefix)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, "MISS", get().Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRedisCache_QueryOrderAndAuthBypass(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		Prefix: "cache:rooms",
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/rooms", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"rows": []int{}})
	}, NewRedisCache(cfg, rdb))

	get := func(target, auth string) string {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if auth != "" {
			req.Header.Set(echo.HeaderAuthorization, auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Header().Get("X-Cache")
	}
	assert.Equal(t, "MISS", get("/v1/rooms?sort=price_asc&limit=5", ""))
	assert.Equal(t, "HIT", get("/v1/rooms?limit=5&sort=price_asc", ""))
	assert.Equal(t, "", get("/v1/rooms?limit=5&sort=price_asc", "Bearer x"))
	assert.Equal(t, 2, calls)
}

func TestRateKey_Strategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	req.AddCookie(&http.Cookie{Name: DeviceIDCookie, Value: "dev1"})
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/rooms")
	c.Set("user_id", "7")

	assert.Equal(t, "rl:ip:10.0.0.1:user:7", rateKey("rl", "ip_user", c))
	assert.Equal(t, "rl:ip:10.0.0.1:device:dev1:route:GET /v1/rooms", rateKey("rl", "", c))
	assert.Equal(t, rateKey("rl", "ip_device_route", c), rateKey("rl", "bogus", c))
}
