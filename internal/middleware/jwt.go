package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/room-rental/internal/utils"
)

// AccessCookie is the cookie the browser UI keeps the access token in.
const AccessCookie = "access_token"

// JWTAuth returns an Echo middleware that validates an access token and
// injects the token's subject and role claims into the request context.
// The token is read from the Authorization header first and from the
// access_token cookie second, so both API clients and the browser UI can
// reach the admin area.  Handlers read `c.Get("user_id")` (string) and
// `c.Get("role")` (string).
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := bearerOrCookie(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing access token"})
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
            }
            c.Set("user_id", claims.UserID)
            c.Set("role", claims.Role)
            return next(c)
        }
    }
}

// bearerOrCookie extracts the raw access token, or "" when none was sent.
func bearerOrCookie(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(AccessCookie); err == nil {
        return ck.Value
    }
    return ""
}
