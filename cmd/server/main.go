package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/room-rental/internal/config"
	"github.com/iliyamo/room-rental/internal/database"
	"github.com/iliyamo/room-rental/internal/devicegate"
	"github.com/iliyamo/room-rental/internal/handler"
	"github.com/iliyamo/room-rental/internal/middleware"
	"github.com/iliyamo/room-rental/internal/model"
	"github.com/iliyamo/room-rental/internal/pagination"
	"github.com/iliyamo/room-rental/internal/queue"
	"github.com/iliyamo/room-rental/internal/repository"
	"github.com/iliyamo/room-rental/internal/router"
	queue_publisher "github.com/iliyamo/room-rental/internal/service"
	"github.com/iliyamo/room-rental/internal/utils"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		slog.Error("db.open", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			slog.Error("db.migrate", "error", err)
			os.Exit(1)
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	rooms := repository.NewRoomRepo(db)
	bootstrapAdmin(ctx, cfg, users)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	devCfg := config.LoadDeviceConfig()
	gate := devicegate.NewGate(sessionStore(devCfg, db, rdb), devCfg.MaxDevices, devicegate.WithLogger(logger))
	cookies := middleware.CookieOptions{TTL: devCfg.CookieTTL, Secure: devCfg.CookieSecure}

	pageCfg := config.LoadPaginationConfig()
	labels := pagination.DefaultLabelTable()
	if pageCfg.LabelsFile != "" {
		if labels, err = pagination.LoadLabelTable(pageCfg.LabelsFile); err != nil {
			slog.Error("labels.load", "file", pageCfg.LabelsFile, "error", err)
			os.Exit(1)
		}
	}
	engine := pagination.NewEngine(rooms, labels,
		pagination.WithLimits(pageCfg.DefaultLimit, pageCfg.MaxLimit),
		pagination.WithLogger(logger))

	cacheCfg := config.LoadCacheConfig()
	var events handler.RoomEventPublisher
	if cfg.AMQPURL != "" {
		events = queue_publisher.New(cfg.AMQPURL)
		handle := queue.AuditLog(cfg.AuditLogDir)
		if rdb != nil {
			handle = queue.Chain(purgeListing(rdb, cacheCfg.Prefix), handle)
		}
		go func() {
			if err := queue.StartRoomConsumer(ctx, cfg.AMQPURL, handle); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("room-consumer.stopped", "error", err)
			}
		}()
	}

	authH := handler.NewAuthHandler(cfg, users, tokens, gate, cookies)
	roomsH := handler.NewRoomsHandler(engine)
	gateMW := middleware.DeviceGate(middleware.DeviceGateConfig{
		Gate:      gate,
		SignOut:   authH,
		CookieTTL: devCfg.CookieTTL,
		Secure:    devCfg.CookieSecure,
		Logger:    logger,
	})
	rl := config.LoadRateLimitConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(logger))

	checks := map[string]handler.Pinger{"mysql": db}
	if rdb != nil {
		checks["redis"] = redisPinger{rdb}
	}
	router.RegisterRoutes(e, &handler.HealthHandler{Checks: checks})
	router.RegisterAuth(e, authH, cfg.JWTSecret, middleware.NewTokenBucket(rl.ForAuth(), rdb))
	router.RegisterPublic(e, roomsH, middleware.NewTokenBucket(rl, rdb), middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterAdmin(e, roomsH, handler.NewAdminRoomHandler(rooms, events), cfg.JWTSecret, gateMW)
	router.RegisterDevices(e, handler.NewDeviceHandler(gate, cookies), cfg.JWTSecret, gateMW)

	go func() {
		addr := ":" + cfg.Port
		slog.Info("http.listen", "addr", addr, "env", cfg.Env, "session_store", devCfg.Store, "max_devices", devCfg.MaxDevices)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http.start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http.shutdown", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// sessionStore picks the device session backend.  Redis falls back to
// MySQL when the server is unreachable at startup.
func sessionStore(cfg config.DeviceConfig, db *sql.DB, rdb *redis.Client) devicegate.Store {
	switch cfg.Store {
	case "memory":
		slog.Warn("device sessions kept in memory; not shared between instances")
		return devicegate.NewMemoryStore()
	case "redis":
		if rdb != nil {
			return repository.NewRedisDeviceStore(rdb, cfg.KeyPrefix, cfg.CookieTTL)
		}
		slog.Warn("SESSION_STORE=redis but redis is unavailable; using mysql")
	}
	return repository.NewDeviceSessionRepo(db)
}

func bootstrapAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo) {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPass == "" {
		return
	}
	if err := utils.CheckPasswordPolicy(cfg.BootstrapPass); err != nil {
		slog.Warn("bootstrap.skipped", "error", err)
		return
	}
	if _, err := users.GetByEmail(ctx, cfg.BootstrapEmail); err == nil {
		return
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		slog.Warn("bootstrap.lookup", "error", err)
		return
	}
	id, err := users.Create(ctx, cfg.BootstrapEmail, cfg.BootstrapPass, model.RoleSuperAdmin, cfg.BcryptCost)
	if err != nil && !errors.Is(err, repository.ErrEmailExists) {
		slog.Warn("bootstrap.create", "error", err)
		return
	}
	slog.Info("bootstrap.super_admin", "user_id", id, "email", cfg.BootstrapEmail)
}

func purgeListing(rdb *redis.Client, prefix string) queue.Handler {
	return func(ctx context.Context, ev queue.RoomChangedEvent) error {
		n, err := middleware.PurgeCache(ctx, rdb, prefix)
		if err != nil {
			return err
		}
		slog.Debug("cache.purged", "room_id", ev.RoomID, "action", ev.Action, "keys", n)
		return nil
	}
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func requestLogger(l *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if uid := middleware.UserID(c); uid != "" {
				attrs = append(attrs, slog.String("user_id", uid))
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				l.LogAttrs(c.Request().Context(), slog.LevelError, "http.request", attrs...)
				return nil
			}
			l.LogAttrs(c.Request().Context(), slog.LevelInfo, "http.request", attrs...)
			return nil
		},
	})
}
