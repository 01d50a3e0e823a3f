package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"focusify/internal/handler"
	"focusify/internal/middleware"
	"focusify/internal/service"
)

type Options struct {
	CORSOrigins    []string
	MetricsEnabled bool
	Logger         zerolog.Logger
}

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	pomodoroHandler *handler.PomodoroHandler,
	opts Options,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.AccessLog(opts.Logger), gin.Recovery(), middleware.CORS(opts.CORSOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.MetricsEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.Auth(authService), authHandler.Me)

	pomodoro := api.Group("/pomodoro")
	pomodoro.Use(middleware.Auth(authService))
	pomodoro.GET("/state", pomodoroHandler.GetState)
	pomodoro.POST("/start", pomodoroHandler.Start)
	pomodoro.POST("/pause", pomodoroHandler.Pause)
	pomodoro.POST("/reset", pomodoroHandler.Reset)
	pomodoro.POST("/mode", pomodoroHandler.SwitchMode)
	pomodoro.POST("/cycle/reset", pomodoroHandler.ResetCycle)
	pomodoro.POST("/day/new", pomodoroHandler.NewDay)
	pomodoro.POST("/clear", pomodoroHandler.Clear)
	pomodoro.PUT("/settings", pomodoroHandler.UpdateSettings)
	pomodoro.GET("/history", pomodoroHandler.GetHistory)
	pomodoro.GET("/stats/today", pomodoroHandler.TodayStats)

	return engine
}
