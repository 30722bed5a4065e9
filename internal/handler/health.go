package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB and by the adapters main builds for Redis.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler reports process liveness and, on /readyz, the state of
// each backing service.
type HealthHandler struct {
    Checks map[string]Pinger
}

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready pings every dependency with a short timeout.  Any failure answers
// 503 with the per-dependency status so operators see which one is down.
func (h *HealthHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    out := make(map[string]string, len(h.Checks))
    for name, p := range h.Checks {
        if err := p.PingContext(ctx); err != nil {
            out[name] = err.Error()
            status = http.StatusServiceUnavailable
            continue
        }
        out[name] = "ok"
    }
    return c.JSON(status, out)
}
