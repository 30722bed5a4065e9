package config

import (
    "strings"
    "time"
)

// DeviceConfig controls the per-device session gate that protects the
// admin area.
//
//   MAX_DEVICES         – live devices allowed per user (default 2)
//   DEVICE_COOKIE_TTL   – lifetime of the device_token/device_id cookies (default 720h)
//   SESSION_STORE       – mysql | redis | memory (default mysql)
//   SESSION_KEY_PREFIX  – key namespace for the redis store (default "dev")
//   COOKIE_SECURE       – overrides the Secure flag; defaults to APP_ENV=production
type DeviceConfig struct {
    MaxDevices   int
    CookieTTL    time.Duration
    Store        string
    KeyPrefix    string
    CookieSecure bool
}

// LoadDeviceConfig reads the device gate settings.
func LoadDeviceConfig() DeviceConfig {
    cfg := DeviceConfig{
        MaxDevices:   envInt("MAX_DEVICES", 2),
        CookieTTL:    envDur("DEVICE_COOKIE_TTL", 30*24*time.Hour),
        Store:        strings.ToLower(envStr("SESSION_STORE", "mysql")),
        KeyPrefix:    envStr("SESSION_KEY_PREFIX", "dev"),
        CookieSecure: envBool("COOKIE_SECURE", strings.EqualFold(envStr("APP_ENV", ""), "production")),
    }
    if cfg.MaxDevices < 1 { cfg.MaxDevices = 1 }
    if cfg.CookieTTL <= 0 { cfg.CookieTTL = 30 * 24 * time.Hour }
    switch cfg.Store {
    case "mysql", "redis", "memory":
    default:
        cfg.Store = "mysql"
    }
    return cfg
}
