package middleware

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/room-rental/internal/config"
)

// takeToken refills the bucket in whole intervals, then spends one token.
// Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local every    = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last   = tonumber(redis.call('HGET', KEYS[1], 'last_ms'))
if tokens == nil or last == nil then
  tokens, last = capacity, now
end

if every > 0 and now > last then
  local n = math.floor((now - last) / every)
  if n > 0 then
    tokens = math.min(capacity, tokens + n * refill)
    last = last + n * every
  end
end

local retry = 0
local ok = 0
if tokens >= 1 then
  ok = 1
  tokens = tokens - 1
else
  retry = math.max(0, every - (now - last))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_ms', last)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[5]))
return {ok, tokens, retry}
`)

type bucketState struct {
    allowed    bool
    remaining  int64
    retryAfter time.Duration
}

type bucket struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
}

func (b bucket) take(ctx context.Context, key string, now time.Time) (bucketState, error) {
    res, err := takeToken.Run(ctx, b.rdb, []string{key},
        now.UnixMilli(),
        b.cfg.Capacity,
        b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(),
        int64(b.cfg.TTL/time.Second),
    ).Int64Slice()
    if err != nil {
        return bucketState{}, err
    }
    if len(res) != 3 {
        return bucketState{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
    }
    return bucketState{
        allowed:    res[0] == 1,
        remaining:  res[1],
        retryAfter: time.Duration(res[2]) * time.Millisecond,
    }, nil
}

// NewTokenBucket limits requests per key with a Redis token bucket.
// Browsing keys default to ip+device+route so two devices of one admin
// do not share a bucket.  Redis faults let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    b := bucket{cfg: cfg, rdb: rdb}

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg.Prefix, cfg.KeyStrategy, c)
            st, err := b.take(c.Request().Context(), key, time.Now())
            if err != nil {
                slog.Warn("ratelimit: store unavailable, allowing", "key", key, "error", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if st.allowed {
                return next(c)
            }

            secs := int((st.retryAfter + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            slog.Debug("ratelimit: blocked", "key", key, "retry_after_s", secs)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too_many_requests",
                "message":     "rate limit exceeded",
                "retry_after": secs,
            })
        }
    }
}

// rateKey joins the parts named by strategy ("ip", "user", "device",
// "route" separated by "_") under prefix.  Unknown strategies fall back
// to ip_device_route.
func rateKey(prefix, strategy string, c echo.Context) string {
    strategy = strings.ToLower(strings.TrimSpace(strategy))
    names := strings.Split(strategy, "_")
    parts := []string{prefix}
    for _, n := range names {
        v, ok := rateKeyPart(n, c)
        if !ok {
            return rateKey(prefix, "ip_device_route", c)
        }
        parts = append(parts, n, v)
    }
    return strings.Join(parts, ":")
}

func rateKeyPart(name string, c echo.Context) (string, bool) {
    switch name {
    case "ip":
        if ip := c.RealIP(); ip != "" {
            return ip, true
        }
        return "unknown", true
    case "user":
        return userKey(c), true
    case "device":
        return deviceKey(c), true
    case "route":
        return c.Request().Method + " " + c.Path(), true
    }
    return "", false
}
