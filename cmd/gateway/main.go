package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slate/internal/core/ports"
	"slate/internal/core/services"
	httphandlers "slate/internal/handlers/http"
	"slate/internal/infrastructure/distributed"
	"slate/internal/infrastructure/gateway"
	"slate/internal/infrastructure/middleware"
	"slate/internal/infrastructure/monitoring"
	repositories "slate/internal/infrastructure/repositories"
	"slate/pkg/config"
	"slate/pkg/logger"
	"slate/pkg/tracing"
	"slate/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/slate/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "slate-gateway",
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("tracing disabled", "error", err)
	}

	// Stores
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	roomRepo := repoFactory.Rooms()
	userRepo := repoFactory.Users()
	docRepo := repoFactory.Documents()
	chatRepo := repoFactory.Chat()
	presence := repoFactory.Presence()
	counters := repoFactory.Counters()
	sessions := repoFactory.Sessions()

	// Broadcaster: the local hub, relayed across instances when Redis is up.
	hub := gateway.NewHub(log)
	var broadcaster ports.Broadcaster = hub

	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	if client := repoFactory.RedisClient(); client != nil {
		bus := distributed.NewEventBus(client, hub, utils.GenerateInstanceID(), log)
		go func() {
			if err := bus.Run(busCtx); err != nil && busCtx.Err() == nil {
				log.Errorw("broadcast relay stopped", "error", err)
			}
		}()
		defer bus.Close()
		broadcaster = bus
	}

	prometheusCollector := monitoring.NewPrometheusCollector()

	// Services
	planService := services.NewPlanService(userRepo)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.AllowAnonymous,
		userRepo,
		sessions,
		log,
	)
	roomService := services.NewRoomService(roomRepo, userRepo, docRepo, presence, broadcaster, planService, log)
	whiteboardService := services.NewWhiteboardService(docRepo, roomRepo, broadcaster,
		services.WhiteboardConfig{WriteMinInterval: cfg.Whiteboard.WriteMinInterval}, log)
	chatService := services.NewChatService(chatRepo, broadcaster, log)
	signalingService := services.NewSignalingService(broadcaster, presence, planService, log)

	// Rate limiting
	eventLimiter := middleware.NewEventLimiter(cfg.RateLimiting.Events, counters, log)
	connLimiter := middleware.NewConnectionLimiter(counters,
		cfg.RateLimiting.Connection.AttemptsPerWindow, cfg.RateLimiting.Connection.Window, log)

	wsServer := gateway.NewServer(cfg, authService, roomService, whiteboardService,
		chatService, signalingService, hub, eventLimiter, connLimiter, prometheusCollector, log)

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddCheck("redis", func(ctx context.Context) (bool, error) {
			return true, client.Ping(ctx).Err()
		}, 2*time.Second)
	}

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.ErrorHandlerMiddleware(log))

	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL, cfg.Auth.AllowAnonymous)
	authHandler.SetupRoutes(router)

	roomHandler := httphandlers.NewRoomHandler(roomRepo, roomService)
	roomHandler.SetupRoutes(router, middleware.AuthMiddleware(authService))

	router.GET("/ws", wsServer.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    utils.FormatDuration(time.Since(startTime)),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Slate gateway on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Slate gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	busCancel()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error shutting down tracer", "error", err)
		}
	}

	log.Info("Slate gateway stopped")
}
