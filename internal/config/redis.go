package config

// Redis backs the rate limiter, the listing response cache and, with
// SESSION_STORE=redis, the device session store.  NewRedisClient returns
// nil when the server cannot be reached; every caller degrades to running
// without Redis instead of refusing to start.

import (
    "context"
    "crypto/tls"
    "log/slog"
    "os"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings.
//   REDIS_ADDR – host:port (REDIS_HOST + REDIS_PORT take precedence)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads REDIS_* variables.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
        TLS:      strings.EqualFold(os.Getenv("REDIS_TLS"), "true") || os.Getenv("REDIS_TLS") == "1",
    }
}

// NewRedisClient connects and pings with a short timeout.  It returns nil
// on failure.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        slog.Warn("redis.unavailable", "addr", cfg.Addr, "error", err)
        _ = client.Close()
        return nil
    }
    return client
}
