package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
)

// asUser stands in for JWTAuth: X-Test-User and X-Test-Role become the
// identity values the real middleware would set.
func asUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if uid := c.Request().Header.Get("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
			c.Set("role", c.Request().Header.Get("X-Test-Role"))
		}
		return next(c)
	}
}

func serve(e *echo.Echo, method, target, body string, hdr map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func admin(id string) map[string]string {
	return map[string]string{"X-Test-User": id, "X-Test-Role": "ADMIN"}
}

func superAdmin(id string) map[string]string {
	return map[string]string{"X-Test-User": id, "X-Test-Role": "SUPER_ADMIN"}
}
