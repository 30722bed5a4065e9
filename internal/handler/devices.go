package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-rental/internal/devicegate"
	"github.com/iliyamo/room-rental/internal/middleware"
)

// DeviceHandler exposes the caller's device sessions.
type DeviceHandler struct {
	Gate    *devicegate.Gate
	Cookies middleware.CookieOptions
}

// NewDeviceHandler panics on a nil gate.
func NewDeviceHandler(g *devicegate.Gate, cookies middleware.CookieOptions) *DeviceHandler {
	if g == nil {
		panic("nil gate passed to NewDeviceHandler")
	}
	return &DeviceHandler{Gate: g, Cookies: cookies}
}

type deviceItem struct {
	DeviceID   string `json:"device_id"`
	CreatedAt  string `json:"created_at"`
	LastSeenAt string `json:"last_seen_at"`
	Current    bool   `json:"current"`
}

// List handles GET /v1/devices.
func (h *DeviceHandler) List(c echo.Context) error {
	uid := middleware.UserID(c)
	live, err := h.Gate.Store().ListLive(c.Request().Context(), uid)
	if err != nil {
		c.Logger().Errorf("list devices: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "device store unavailable"})
	}
	current := middleware.ReadDevice(c).ID
	if id, ok := c.Get("device_id").(string); ok && id != "" {
		current = id
	}
	items := make([]deviceItem, 0, len(live))
	for _, s := range live {
		items = append(items, deviceItem{
			DeviceID:   s.DeviceID,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			LastSeenAt: s.LastSeenAt.UTC().Format(time.RFC3339),
			Current:    s.DeviceID == current,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "max_devices": h.Gate.MaxDevices()})
}

// ForceLogin handles POST /v1/devices/force-login.  The caller explicitly
// asked to take over a slot: the oldest live device is signed out and this
// one registered in its place.
func (h *DeviceHandler) ForceLogin(c echo.Context) error {
	uid := middleware.UserID(c)
	d, err := h.Gate.ForceRegister(c.Request().Context(), uid, middleware.ReadDevice(c))
	if err != nil {
		c.Logger().Errorf("force login: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "device store unavailable"})
	}
	if d.Outcome == devicegate.Kicked {
		return c.JSON(http.StatusConflict, echo.Map{"error": "device_limit", "message": "no device slot could be freed"})
	}
	middleware.SetDeviceCookies(c, d.Device, h.Cookies)
	return c.JSON(http.StatusOK, echo.Map{"device_id": d.Device.ID, "rotations": d.Rotations})
}

// Logout handles POST /v1/devices/logout.  It frees this device's slot
// best-effort and always clears the cookies.
func (h *DeviceHandler) Logout(c echo.Context) error {
	h.Gate.Release(c.Request().Context(), middleware.ReadDevice(c).Token)
	middleware.ClearDeviceCookies(c, h.Cookies)
	return c.NoContent(http.StatusNoContent)
}
