package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/room-rental/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/room-rental/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/room-rental/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	if h != nil {
		e.GET("/readyz", h.Ready)
	}
}

// RegisterAuth registers all authentication-related routes.  limit is
// applied to the credential endpoints only (login, refresh).
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	// Logout accepts either a refresh token in the body or an access
	// token, so it does not sit behind JWTAuth.
	g.POST("/logout", a.Logout)
	// Only a SUPER_ADMIN may create further accounts.
	g.POST("/register", a.Register, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleSuperAdmin))

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the anonymous room listing.  mws typically
// carries the rate limiter and the response cache, in that order.
func RegisterPublic(e *echo.Echo, rooms *handler.RoomsHandler, mws ...echo.MiddlewareFunc) {
	e.GET("/v1/rooms", rooms.List, mws...)
}
