package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-rental/internal/devicegate"
)

// Device cookie names.
const (
	DeviceTokenCookie = "device_token"
	DeviceIDCookie    = "device_id"
)

// Redirect targets for rejected devices.
const (
	KickedRedirect = "/?auth=kicked"
	LimitRedirect  = "/?auth=limit"
)

// SignOuter ends every authenticated session of a user.
type SignOuter interface {
	SignOut(ctx context.Context, userID string) error
}

// SignOutFunc adapts a function to SignOuter.
type SignOutFunc func(ctx context.Context, userID string) error

func (f SignOutFunc) SignOut(ctx context.Context, userID string) error { return f(ctx, userID) }

// DeviceGateConfig wires the gate into echo.
type DeviceGateConfig struct {
	Gate      *devicegate.Gate
	SignOut   SignOuter
	CookieTTL time.Duration
	Secure    bool
	Logger    *slog.Logger
}

// CookieOptions returns the device cookie settings.
func (cfg DeviceGateConfig) CookieOptions() CookieOptions {
	return CookieOptions{TTL: cfg.CookieTTL, Secure: cfg.Secure}
}

// DeviceGate runs the device check for every request carrying an
// authenticated user.  It must sit after JWTAuth.  Rejected devices are
// signed out, lose their cookies and are redirected to the home page;
// store faults let the request through.
func DeviceGate(cfg DeviceGateConfig) echo.MiddlewareFunc {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	opts := cfg.CookieOptions()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := UserID(c)
			if uid == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			d := cfg.Gate.Check(ctx, uid, ReadDevice(c))

			if d.Outcome.Denied() {
				target := KickedRedirect
				if d.Outcome == devicegate.LimitRevalidate {
					target = LimitRedirect
				}
				if cfg.SignOut != nil {
					if err := cfg.SignOut.SignOut(ctx, uid); err != nil {
						log.Warn("sign out after device rejection failed", "user_id", uid, "error", err)
					}
				}
				ClearDeviceCookies(c, opts)
				ClearAccessCookie(c, opts)
				log.Info("device rejected", "user_id", uid, "outcome", d.Outcome.String())
				return c.Redirect(http.StatusFound, target)
			}

			if d.CookiesChanged {
				SetDeviceCookies(c, d.Device, opts)
			}
			c.Set("device_id", d.Device.ID)
			c.Set("device_outcome", d.Outcome.String())
			return next(c)
		}
	}
}

// CookieOptions controls lifetime and the Secure flag of device cookies.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// ReadDevice returns the device cookie pair; missing cookies are empty.
func ReadDevice(c echo.Context) devicegate.Device {
	var d devicegate.Device
	if ck, err := c.Cookie(DeviceIDCookie); err == nil {
		d.ID = ck.Value
	}
	if ck, err := c.Cookie(DeviceTokenCookie); err == nil {
		d.Token = ck.Value
	}
	return d
}

// SetDeviceCookies writes both device cookies.
func SetDeviceCookies(c echo.Context, d devicegate.Device, o CookieOptions) {
	ttl := o.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	c.SetCookie(deviceCookie(DeviceIDCookie, d.ID, int(ttl/time.Second), o.Secure))
	c.SetCookie(deviceCookie(DeviceTokenCookie, d.Token, int(ttl/time.Second), o.Secure))
}

// ClearDeviceCookies expires both device cookies.
func ClearDeviceCookies(c echo.Context, o CookieOptions) {
	c.SetCookie(deviceCookie(DeviceIDCookie, "", -1, o.Secure))
	c.SetCookie(deviceCookie(DeviceTokenCookie, "", -1, o.Secure))
}

// ClearAccessCookie expires the access_token cookie.
func ClearAccessCookie(c echo.Context, o CookieOptions) {
	c.SetCookie(deviceCookie(AccessCookie, "", -1, o.Secure))
}

// deviceCookie builds an httpOnly, SameSite=Lax cookie on "/".  A negative
// maxAge is sent as Max-Age=0.
func deviceCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
