package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"focusify/internal/config"
	"focusify/internal/db"
	"focusify/internal/handler"
	xlog "focusify/internal/log"
	"focusify/internal/notify"
	"focusify/internal/pomodoro"
	"focusify/internal/repository"
	"focusify/internal/router"
	"focusify/internal/service"
	"focusify/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: "focusify-server"})
	logger := xlog.WithComponent("server")
	gin.SetMode(gin.ReleaseMode)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	applied, err := db.MigrateDir(database, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	if len(applied) > 0 {
		logger.Info().Strs("migrations", applied).Msg("migrations applied")
	}

	kv, closeKV, err := openStateStore(cfg, database)
	if err != nil {
		logger.Fatal().Err(err).Msg("open state store")
	}
	defer closeKV()

	userRepo := repository.NewUserRepository(database)
	pomodoroRepo := repository.NewPomodoroRepository(database)

	authService := service.NewAuthService(userRepo, pomodoroRepo, cfg.JWTSecret, cfg.TokenTTL)
	pomodoroService := service.NewPomodoroService(
		pomodoroRepo,
		store.NewSnapshotStore(kv),
		service.WithSettings(cfg.Settings()),
		service.WithTimerOptions(pomodoro.WithEngineConfig(cfg.Engine())),
		service.WithNotifier(notify.NewLog(xlog.WithComponent("notify"))),
	)

	authHandler := handler.NewAuthHandler(authService)
	pomodoroHandler := handler.NewPomodoroHandler(pomodoroService)

	engine := router.New(authService, authHandler, pomodoroHandler, router.Options{
		CORSOrigins:    cfg.CORSOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         xlog.WithComponent("http"),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("state_backend", cfg.StateBackend).Msg("backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if closeErr := pomodoroService.Close(shutdownCtx); closeErr != nil {
			logger.Error().Err(closeErr).Msg("save timers on shutdown")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func openStateStore(cfg config.Config, database *sql.DB) (store.KV, func(), error) {
	if cfg.StateBackend != config.StateBackendRedis {
		return store.NewSQLite(database), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store.NewRedis(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
}
