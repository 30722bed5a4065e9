package middleware

// identity.go defines helpers shared across middleware files for reading
// who is calling: the authenticated user id set by JWTAuth and the device
// id cookie set by the device gate.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/room-rental/internal/model"
)

// UserID returns the authenticated user's id, or "" for anonymous callers.
func UserID(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok {
        return s
    }
    return ""
}

// Role returns the authenticated user's role claim, or "".
func Role(c echo.Context) string {
    if s, ok := c.Get("role").(string); ok {
        return s
    }
    return ""
}

// Tier maps the caller's role onto the listing visibility tier.
func Tier(c echo.Context) model.RoleTier {
    return model.TierForRole(Role(c))
}

// userKey is the rate-limit identity: the user id or "anon".
func userKey(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}

// deviceKey is the device id cookie value or "none".
func deviceKey(c echo.Context) string {
    if ck, err := c.Cookie(DeviceIDCookie); err == nil && ck.Value != "" {
        return ck.Value
    }
    return "none"
}
