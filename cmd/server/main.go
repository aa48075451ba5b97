// Package main - точка входа HTTP API сервиса подбора учебных пар.
//
// Сервер обслуживает:
// - подбор кандидатов и жизненный цикл матчей
// - сессии, оценки и репутацию
// - уведомления и начисление очков от внешних сервисов
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/campus-hub/study-match/config"
	"github.com/campus-hub/study-match/internal/app"
	"github.com/campus-hub/study-match/internal/infrastructure/messaging"
	"github.com/campus-hub/study-match/internal/infrastructure/metrics"
	httpapi "github.com/campus-hub/study-match/internal/interface/http"
	"github.com/campus-hub/study-match/internal/interface/http/handlers"
	"github.com/campus-hub/study-match/pkg/logger"
)

// devSecret signs tokens when JWT_SECRET is unset in development.
const devSecret = "study-match-dev-secret"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting study-match server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ И КЕШ
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS И МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	bus := messaging.NewInMemoryEventBus(messaging.Config{Logger: log, Observer: collector})
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()
	if err := collector.Register(bus); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	if infra.Leaderboard != nil {
		if err := infra.Leaderboard.Register(bus); err != nil {
			return fmt.Errorf("failed to register leaderboard cache: %w", err)
		}
		if err := infra.Leaderboard.Warm(ctx, infra.Repos.Profiles, cfg.Worker.LeaderboardSize); err != nil {
			log.Warn("leaderboard warm-up failed, store fallback in use", logger.Err(err))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	h := app.Build(infra.Repos, app.Options{
		Publisher:   bus,
		Leaderboard: infra.LeaderboardCache(),
		Logger:      log,
	})

	health := handlers.NewHealthChecker(cfg.App.Version)
	if infra.DB != nil {
		health.AddCheck("postgres", handlers.PingCheck(infra.DB))
	}
	if infra.Cache != nil {
		health.AddOptionalCheck("redis", handlers.PingCheck(infra.Cache))
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET is empty, using the development secret")
		secret = devSecret
	}

	deps := httpapi.DependenciesFrom(h)
	deps.Tokens = handlers.NewTokenManager(secret, cfg.Auth.Issuer, cfg.Auth.TokenLifetime)
	deps.ServiceKeyHashes = cfg.Auth.ServiceKeyHashes
	deps.Health = health
	deps.Metrics = collector
	deps.Gatherer = registry
	deps.Logger = log
	if len(deps.ServiceKeyHashes) == 0 && cfg.IsDevelopment() {
		log.Warn("SERVICE_KEY_HASHES is empty, producer routes accept any caller in development")
		deps.OpenProducerRoutes = true
	}
	if !cfg.Features.IsEnabled(config.FeatureActivityPoints, nil) {
		deps.AwardPoints = nil
	}
	if !cfg.Features.IsEnabled(config.FeatureExternalNotifications, nil) {
		deps.EmitNotice = nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		RateLimitBurst:     cfg.HTTP.RateLimitBurst,
		EnableMetrics:      cfg.Observability.MetricsEnabled,
	}, deps)

	errCh := server.StartAsync()
	log.Info("study-match server is running", logger.String("addr", fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Console:   cfg.Observability.LogFormat == "text",
		AddCaller: !cfg.IsProduction(),
	}).With(logger.String("service", cfg.App.Name))
}
