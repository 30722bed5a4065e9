package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-rental/internal/config"
	"github.com/iliyamo/room-rental/internal/devicegate"
	"github.com/iliyamo/room-rental/internal/middleware"
	"github.com/iliyamo/room-rental/internal/repository"
	"github.com/iliyamo/room-rental/internal/utils"
)

func newAuth(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, *devicegate.Gate) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	g := devicegate.NewGate(devicegate.NewMemoryStore(), 2)
	cfg := config.Config{JWTSecret: "k", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	h := NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), g, middleware.CookieOptions{Secure: true})
	return h, mock, g
}

var userCols = []string{"id", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}

func TestAuth_LoginReportsDevicesAndSetsCookie(t *testing.T) {
	h, mock, g := newAuth(t)
	g.Check(context.Background(), "7", devicegate.Device{})

	hash, err := utils.HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery(`SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM users WHERE email=\?`).
		WithArgs("ops@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "ops@example.com", hash, "ADMIN", true, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(7, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e := echo.New()
	e.POST("/v1/auth/login", h.Login)
	rec := serve(e, http.MethodPost, "/v1/auth/login", `{"email":" OPS@example.com","password":"s3cret-pass"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Access       tokenPart `json:"access"`
		DevicesInUse *int      `json:"devices_in_use"`
		MaxDevices   int       `json:"max_devices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.DevicesInUse)
	assert.Equal(t, 1, *body.DevicesInUse)
	assert.Equal(t, 2, body.MaxDevices)

	ck := cookieMap(rec)[middleware.AccessCookie]
	require.NotNil(t, ck)
	assert.Equal(t, body.Access.Token, ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)

	claims, err := utils.ParseAccessToken("k", ck.Value)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuth_LoginRejectsWrongPasswordAndUnknownUser(t *testing.T) {
	h, mock, _ := newAuth(t)
	hash, _ := utils.HashPassword("right-pass", 4)
	now := time.Now()
	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "a@example.com", hash, "ADMIN", true, now, now))
	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("b@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	e := echo.New()
	e.POST("/v1/auth/login", h.Login)
	assert.Equal(t, http.StatusUnauthorized,
		serve(e, http.MethodPost, "/v1/auth/login", `{"email":"a@example.com","password":"wrong-pass"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		serve(e, http.MethodPost, "/v1/auth/login", `{"email":"b@example.com","password":"x"}`, nil).Code)
}

func TestAuth_SignOutRevokesAllRefreshTokens(t *testing.T) {
	h, mock, _ := newAuth(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=NOW\(\) WHERE user_id=\? AND revoked_at IS NULL`).
		WithArgs(42).WillReturnResult(sqlmock.NewResult(0, 3))

	var so middleware.SignOuter = h
	require.NoError(t, so.SignOut(context.Background(), "42"))
	assert.Error(t, so.SignOut(context.Background(), "not-a-number"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuth_LogoutWithBearerRevokesAllAndClearsCookies(t *testing.T) {
	h, mock, _ := newAuth(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=NOW\(\) WHERE user_id=\?`).
		WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 1))

	tok, err := utils.NewAccessToken("k", 9, "ADMIN", 5)
	require.NoError(t, err)

	e := echo.New()
	e.POST("/v1/auth/logout", h.Logout)
	rec := serve(e, http.MethodPost, "/v1/auth/logout", "", map[string]string{"Authorization": "Bearer " + tok.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	cks := cookieMap(rec)
	for _, name := range []string{middleware.AccessCookie, middleware.DeviceTokenCookie, middleware.DeviceIDCookie} {
		require.NotNil(t, cks[name], name)
		assert.Less(t, cks[name].MaxAge, 0)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuth_LogoutWithoutCredentialsStillFreesDevice(t *testing.T) {
	h, mock, g := newAuth(t)
	ctx := context.Background()
	d := g.Check(ctx, "9", devicegate.Device{})
	require.Equal(t, devicegate.Registered, d.Outcome)

	expired, err := utils.NewAccessToken("k", 9, "ADMIN", -5)
	require.NoError(t, err)

	e := echo.New()
	e.POST("/v1/auth/logout", h.Logout)
	deviceCookies := []*http.Cookie{
		{Name: middleware.DeviceIDCookie, Value: d.Device.ID},
		{Name: middleware.DeviceTokenCookie, Value: d.Device.Token},
	}
	for name, hdr := range map[string]map[string]string{
		"no credentials": nil,
		"expired access": {"Authorization": "Bearer " + expired.Token},
	} {
		rec := serve(e, http.MethodPost, "/v1/auth/logout", "", hdr, deviceCookies...)
		require.Equal(t, http.StatusNoContent, rec.Code, name)
		cks := cookieMap(rec)
		for _, ck := range []string{middleware.AccessCookie, middleware.DeviceTokenCookie, middleware.DeviceIDCookie} {
			require.NotNil(t, cks[ck], name+" "+ck)
			assert.Less(t, cks[ck].MaxAge, 0)
		}
	}

	live, err := g.Store().ListLive(ctx, "9")
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuth_LogoutRevokeFailureStillClearsCookies(t *testing.T) {
	h, mock, _ := newAuth(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=NOW\(\) WHERE token_hash=\?`).
		WithArgs(utils.HashRefreshRaw("r1")).WillReturnError(errors.New("connection reset"))

	e := echo.New()
	e.POST("/v1/auth/logout", h.Logout)
	rec := serve(e, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"r1"}`, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotNil(t, cookieMap(rec)[middleware.DeviceTokenCookie])
	assert.NotNil(t, cookieMap(rec)[middleware.AccessCookie])
	assert.NoError(t, mock.ExpectationsWereMet())
}
