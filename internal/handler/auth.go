package handler

import (
    "context"  // provides context with cancellation for DB calls
    "errors"   // sentinel matching
    "log/slog" // best-effort failures on logout
    "net/http" // HTTP status codes and primitives
    "strconv"  // user ids travel as decimal strings
    "strings"  // string manipulation utilities
    "time"     // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/room-rental/internal/config"     // app configuration
    "github.com/iliyamo/room-rental/internal/devicegate" // live device counts
    "github.com/iliyamo/room-rental/internal/middleware" // cookie helpers and identity
    "github.com/iliyamo/room-rental/internal/model"      // roles
    "github.com/iliyamo/room-rental/internal/repository" // DB repositories
    "github.com/iliyamo/room-rental/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.  Gate may be nil;
// login then omits the device counts.
type AuthHandler struct {
    Cfg     config.Config
    Users   *repository.UserRepo
    Tokens  *repository.TokenRepo
    Gate    *devicegate.Gate
    Cookies middleware.CookieOptions
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, g *devicegate.Gate, cookies middleware.CookieOptions) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Gate: g, Cookies: cookies}
}

// ----- DTOs -----

type registerReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
    Role     string `json:"role"` // ADMIN | SUPER_ADMIN
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
    // Device counts let the UI offer force-login before the gate kicks.
    DevicesInUse *int `json:"devices_in_use,omitempty"`
    MaxDevices   int  `json:"max_devices,omitempty"`
}

// Register creates another administrator account.  The route sits behind
// SUPER_ADMIN; the very first account comes from BOOTSTRAP_ADMIN_*.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
    }
    if err := utils.CheckPasswordPolicy(req.Password); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    role := strings.ToUpper(strings.TrimSpace(req.Role))
    if role != model.RoleSuperAdmin {
        role = model.RoleAdmin
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    uid, err := h.Users.Create(ctx, req.Email, req.Password, role, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }
    return c.JSON(http.StatusCreated, userPart{ID: uid, Email: req.Email, Role: role})
}

// Login verifies credentials, returns a new token pair and sets the
// access_token cookie for the browser UI.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }

    resp, err := h.issue(ctx, u)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(resp.Refresh.Token), resp.Refresh.Expires); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }

    if h.Gate != nil {
        resp.MaxDevices = h.Gate.MaxDevices()
        // A store fault only hides the count; the gate itself fails open.
        if live, err := h.Gate.Store().ListLive(ctx, strconv.FormatUint(u.ID, 10)); err == nil {
            n := len(live)
            resp.DevicesInUse = &n
        }
    }
    h.setAccessCookie(c, resp.Access)
    return c.JSON(http.StatusOK, resp)
}

// Refresh rotates the refresh token: the presented one is revoked and a
// new pair is issued in the same transaction.  Replaying an old token
// fails.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        if errors.Is(err, repository.ErrRefreshInvalid) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    if !u.IsActive {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }

    resp, err := h.issue(ctx, u)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
    }
    if err := h.Tokens.Rotate(ctx, userID, hash, utils.HashRefreshRaw(resp.Refresh.Token), resp.Refresh.Expires); err != nil {
        if errors.Is(err, repository.ErrRefreshInvalid) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }
    h.setAccessCookie(c, resp.Access)
    return c.JSON(http.StatusOK, resp)
}

// Logout is best-effort and idempotent.  The device slot is freed and the
// auth cookies are cleared first, whatever happens next.  Then the refresh
// token in the body is revoked or, when only an access token is presented,
// every refresh token of that user.  Revoke failures are logged and the
// answer is still 204, including when no credentials were sent at all.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if h.Gate != nil {
        h.Gate.Release(ctx, middleware.ReadDevice(c).Token)
    }
    middleware.ClearDeviceCookies(c, h.Cookies)
    middleware.ClearAccessCookie(c, h.Cookies)

    var uid uint64
    if raw := accessTokenFrom(c); raw != "" {
        if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw); err == nil {
            uid, _ = strconv.ParseUint(claims.UserID, 10, 64)
        }
    }

    switch {
    case refreshToken != "":
        if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(refreshToken)); err != nil {
            slog.WarnContext(ctx, "logout.revoke_refresh", "error", err)
        }
    case uid != 0:
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            slog.WarnContext(ctx, "logout.revoke_all", "user_id", uid, "error", err)
        }
    }
    return c.NoContent(http.StatusNoContent)
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{
        "user_id": middleware.UserID(c),
        "role":    middleware.Role(c),
        "tier":    middleware.Tier(c),
    })
}

// SignOut revokes every refresh token of userID.  The device gate calls it
// when it rejects a device.
func (h *AuthHandler) SignOut(ctx context.Context, userID string) error {
    uid, err := strconv.ParseUint(userID, 10, 64)
    if err != nil {
        return err
    }
    return h.Tokens.RevokeAllForUser(ctx, uid)
}

func (h *AuthHandler) issue(_ context.Context, u model.User) (authResp, error) {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return authResp{}, errors.New("issue access failed")
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return authResp{}, errors.New("issue refresh failed")
    }
    return authResp{
        User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
    }, nil
}

func (h *AuthHandler) setAccessCookie(c echo.Context, t tokenPart) {
    c.SetCookie(&http.Cookie{
        Name:     middleware.AccessCookie,
        Value:    t.Token,
        Path:     "/",
        Expires:  t.Expires,
        HttpOnly: true,
        Secure:   h.Cookies.Secure,
        SameSite: http.SameSiteLaxMode,
    })
}

func accessTokenFrom(c echo.Context) string {
    if a := c.Request().Header.Get("Authorization"); strings.HasPrefix(a, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(a, "Bearer "))
    }
    if ck, err := c.Cookie(middleware.AccessCookie); err == nil {
        return ck.Value
    }
    return ""
}
