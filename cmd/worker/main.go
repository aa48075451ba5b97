// Package main - точка входа для фоновых процессов (Worker) сервиса подбора учебных пар.
//
// Worker отвечает за периодические задачи:
// - Повторное начисление пропущенных очков (match_accepted, rating_bonus)
// - Пересборка кеша лидерборда в Redis
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/campus-hub/study-match/config"
	"github.com/campus-hub/study-match/internal/app"
	"github.com/campus-hub/study-match/internal/infrastructure/messaging"
	"github.com/campus-hub/study-match/internal/infrastructure/metrics"
	"github.com/campus-hub/study-match/internal/infrastructure/scheduler"
	"github.com/campus-hub/study-match/internal/infrastructure/scheduler/jobs"
	"github.com/campus-hub/study-match/internal/interface/http/handlers"
	"github.com/campus-hub/study-match/pkg/logger"
)

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
	log.Info("starting study-match worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.Worker.Timezone),
	)
	if !cfg.Worker.Enabled {
		log.Info("worker disabled by configuration, exiting")
		return nil
	}
	if cfg.UseMemoryStore() {
		// Награды в памяти другого процесса недоступны воркеру.
		return errors.New("worker requires DATABASE_URL")
	}

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
		// Reapplied awards move users in the cached index too.
		if err := infra.Leaderboard.Register(bus); err != nil {
			return fmt.Errorf("failed to register leaderboard cache: %w", err)
		}
	}

	h := app.Build(infra.Repos, app.Options{
		Publisher:   bus,
		Leaderboard: infra.LeaderboardCache(),
		Logger:      log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:         log,
		Timezone:       cfg.Worker.Location,
		TickInterval:   time.Second,
		MaxHistorySize: 100,
		RunOnStart:     cfg.Worker.RunOnStart,
	})
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if r.Error != nil {
			log.Warn("job failed", logger.String("job", r.JobName), logger.Err(r.Error), logger.Latency(r.Duration))
		}
	})

	if cfg.Features.IsEnabled(config.FeatureReconcileAwards, nil) {
		schedule, err := scheduler.ParseSchedule(cfg.Worker.ReconcileSchedule)
		if err != nil {
			return fmt.Errorf("reconcile schedule: %w", err)
		}
		job := jobs.NewReconcileAwardsJob(h.Reconcile, collector, nil, jobs.ReconcileAwardsConfig{
			Lookback:   cfg.Worker.ReconcileLookback,
			BatchLimit: cfg.Worker.ReconcileBatch,
			Timeout:    cfg.Worker.ReconcileTimeout,
		}, log)
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}

	if infra.Leaderboard != nil && cfg.Worker.WarmLeaderboardSchedule != "" {
		schedule, err := scheduler.ParseSchedule(cfg.Worker.WarmLeaderboardSchedule)
		if err != nil {
			return fmt.Errorf("warm leaderboard schedule: %w", err)
		}
		job := jobs.NewWarmLeaderboardJob(infra.Leaderboard, infra.Repos.Profiles, cfg.Worker.LeaderboardSize, log)
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. METRICS / HEALTH ENDPOINT
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.PingCheck(infra.DB))
	if infra.Cache != nil {
		health.AddOptionalCheck("redis", handlers.PingCheck(infra.Cache))
	}

	var opsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		opsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
			Handler:           opsRouter(registry, health, sched),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", logger.Err(err))
			}
		}()
	}

	log.Info("study-match worker is running", logger.Int("jobs", len(sched.ListJobs())))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Warn("scheduler stop", logger.Err(err))
	}
	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", logger.Err(err))
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// opsRouter serves /metrics, /health and the job table.
func opsRouter(gatherer prometheus.Gatherer, health *handlers.HealthChecker, sched *scheduler.Scheduler) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(gatherer))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := health.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		handlers.WriteJSON(w, code, status)
	})
	r.Get("/jobs", func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"jobs":    sched.ListJobs(),
			"history": sched.History(20),
		})
	})
	return r
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
	}).With(logger.String("service", cfg.App.Name+"-worker"))
}
