package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-rental/internal/handler"    // admin handlers
	"github.com/iliyamo/room-rental/internal/middleware" // JWT + role middlewares
	"github.com/iliyamo/room-rental/internal/model"
)

// RegisterAdmin registers the admin area under /v1/admin.  Every route
// requires a valid JWT, an admin role and passes the device gate.
func RegisterAdmin(e *echo.Echo, rooms *handler.RoomsHandler, w *handler.AdminRoomHandler, jwtSecret string, gate echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
		gate,
	)

	// ---- Listing ----
	g.GET("/rooms", rooms.AdminList)

	// ---- Writes ----
	g.POST("/rooms", w.Create)
	g.PATCH("/rooms/:id", w.Patch)
	g.PUT("/rooms/:id/price", w.UpdatePrice)
	g.PUT("/rooms/:id/media", w.SetMedia)
	g.DELETE("/rooms/:id", w.Delete, middleware.RequireRole(model.RoleSuperAdmin))
}

// RegisterDevices registers the device session endpoints.  Listing sits
// behind the gate; force-login must not, since its whole point is to get
// past a full device table.
func RegisterDevices(e *echo.Echo, d *handler.DeviceHandler, jwtSecret string, gate echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/devices",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
	)
	g.GET("", d.List, gate)
	g.POST("/force-login", d.ForceLogin)
	g.POST("/logout", d.Logout)
}
