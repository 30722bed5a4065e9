package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthAndReady(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	e := echo.New()
	e.GET("/healthz", Health)
	e.GET("/readyz", (&HealthHandler{Checks: map[string]Pinger{"mysql": up}}).Ready)
	e.GET("/readyz-down", (&HealthHandler{Checks: map[string]Pinger{"mysql": up, "redis": down}}).Ready)

	rec := serve(e, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(e, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mysql":"ok"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/readyz-down", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"mysql":"ok","redis":"connection refused"}`, rec.Body.String())
}
