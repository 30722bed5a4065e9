package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/room-rental/internal/config"
)

// cachedPage is what the listing cache stores per key.
type cachedPage struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// pageRecorder tees the response body while it is written.  Bodies
// larger than limit are not kept.
type pageRecorder struct {
    http.ResponseWriter
    status   int
    body     bytes.Buffer
    limit    int
    overflow bool
}

func (r *pageRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *pageRecorder) Write(b []byte) (int, error) {
    if !r.overflow {
        if r.limit > 0 && r.body.Len()+len(b) > r.limit {
            r.overflow = true
            r.body.Reset()
        } else {
            r.body.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// listingCacheKey hashes the route and the sorted query, so parameter
// order does not split entries.
func listingCacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var sb strings.Builder
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        sb.WriteString(c.Path())
    case "method_route":
        sb.WriteString(r.Method + " " + c.Path())
    case "method_route_query":
        sb.WriteString(r.Method + " " + c.Path() + "?" + r.URL.Query().Encode())
    default: // route_query
        sb.WriteString(c.Path() + "?" + r.URL.Query().Encode())
    }
    sum := sha1.Sum([]byte(sb.String()))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// NewRedisCache serves repeated public listing requests from Redis.
// Authenticated requests bypass it since rows depend on the caller's tier;
// only 200 responses without Set-Cookie are stored.  Entries are dropped
// early by PurgeCache when a room changes.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] || req.Header.Get(echo.HeaderAuthorization) != "" {
                return next(c)
            }
            key := listingCacheKey(cfg, c)

            if raw, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
                var p cachedPage
                if json.Unmarshal(raw, &p) == nil {
                    return replay(c, p)
                }
                slog.Warn("cache: dropping unreadable entry", "key", key)
            } else if err != redis.Nil {
                slog.Warn("cache: lookup failed", "key", key, "error", err)
            }

            rec := &pageRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow || c.Response().Header().Get(echo.HeaderSetCookie) != "" {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del(echo.HeaderContentLength)
            hdr.Del("X-Cache")
            raw, err := json.Marshal(cachedPage{Status: rec.status, Header: hdr, Body: rec.body.Bytes()})
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.Background(), key, raw, ttl).Err(); err != nil {
                slog.Warn("cache: store failed", "key", key, "error", err)
            }
            return nil
        }
    }
}

func replay(c echo.Context, p cachedPage) error {
    h := c.Response().Header()
    for k, vals := range p.Header {
        for _, v := range vals {
            h.Add(k, v)
        }
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(p.Status)
    _, err := c.Response().Write(p.Body)
    return err
}

// PurgeCache deletes every cached response under prefix and returns the
// number of keys removed.
func PurgeCache(ctx context.Context, rdb *redis.Client, prefix string) (int64, error) {
    if rdb == nil {
        return 0, nil
    }
    var (
        cursor  uint64
        removed int64
    )
    for {
        keys, next, err := rdb.Scan(ctx, cursor, prefix+":*", 200).Result()
        if err != nil {
            return removed, err
        }
        if len(keys) > 0 {
            n, err := rdb.Del(ctx, keys...).Result()
            if err != nil {
                return removed, err
            }
            removed += n
        }
        if next == 0 {
            return removed, nil
        }
        cursor = next
    }
}
