package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/atriumverse/atrium/internal/auth/jwt"
	"github.com/atriumverse/atrium/internal/common/config"
	"github.com/atriumverse/atrium/internal/common/logging"
	"github.com/atriumverse/atrium/internal/gateway"
	"github.com/atriumverse/atrium/internal/infra/cache"
	"github.com/atriumverse/atrium/internal/infra/db"
	"github.com/atriumverse/atrium/internal/infra/migrations"
	"github.com/atriumverse/atrium/internal/observability"
	"github.com/atriumverse/atrium/internal/presence"
	"github.com/atriumverse/atrium/internal/ratelimit"
	"github.com/atriumverse/atrium/internal/rooms"
	"github.com/atriumverse/atrium/internal/session"
	"github.com/atriumverse/atrium/internal/social"
	"github.com/atriumverse/atrium/internal/voice"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(
		cfg.Logging.Level,
		cfg.Logging.Format,
		cfg.Logging.Output,
		cfg.Logging.EnableFile,
		cfg.Logging.FilePath,
	)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	database, err := db.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	if err := migrations.Run(ctx, database.Pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var redisCache *cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err = cache.New(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, running without cache", zap.Error(err))
			redisCache = nil
		} else {
			defer func() {
				_ = redisCache.Close()
			}()
		}
	}

	metrics := observability.NewMetrics(logger)
	go func() {
		if err := metrics.Start(ctx, cfg.Server.MetricsPort); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	limiter := ratelimit.NewLimiter(redisCache, cfg.RateLimit.EventsPerMinute, cfg.RateLimit.Burst, cfg.RateLimit.Enabled)
	defer limiter.Close()

	sessions := session.NewRegistry()
	roomReg := rooms.NewRegistry()
	voiceReg := voice.NewRegistry()
	hub := gateway.NewHub(logger, metrics)

	var repo *social.Repository
	if redisCache != nil {
		repo = social.NewRepositoryWithCache(database.Pool, redisCache)
	} else {
		repo = social.NewRepository(database.Pool)
	}
	socialService := social.NewService(repo, nil, logger)

	broadcaster := presence.NewBroadcaster(sessions, socialService, logger)
	gw := gateway.New(hub, sessions, roomReg, voiceReg, broadcaster, logger)
	socialService.SetNotifier(gw)

	tokens := jwt.NewManager(cfg.Auth.JWTSecret)
	wsServer := gateway.NewServer(hub, gw, tokens, limiter, cfg.Gateway, logger, metrics)

	health := observability.NewHealthChecker(logger)
	health.RegisterCheck("database", database.Health)
	if redisCache != nil {
		health.RegisterCheck("redis", redisCache.Ping)
	}
	health.SetStats(func() map[string]int {
		return map[string]int{
			"connections": hub.ActiveConnections(),
			"sessions":    sessions.Count(),
			"voice_peers": voiceReg.Count(),
		}
	})
	go func() {
		if err := health.Start(ctx, cfg.Server.HealthPort); err != nil {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWS)
	social.NewHandler(socialService, logger).Register(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			zap.String("addr", server.Addr),
			zap.Int("metrics_port", cfg.Server.MetricsPort),
			zap.Int("health_port", cfg.Server.HealthPort),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
