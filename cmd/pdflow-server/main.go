// pdflow-server — регрессионные запуски flow по расписанию и
// read-only API по истории jobs.
//
// Переменные окружения:
//
//	PDFLOW_PORT          порт HTTP (default 8080)
//	PDFLOW_MANIFEST      manifest для /api/v1/jobs по умолчанию
//	PDFLOW_SCHEDULES     YAML-файл расписаний
//	PDFLOW_WORKDIR       корень рабочих директорий узлов (default "build")
//	PDFLOW_DOCKER_IMAGE  запускать инструменты в этом образе
//	PDFLOW_TICK          период тика планировщика (default 30s)
//	DB_URL               Postgres: история runs и состояние расписаний
//	RABBITMQ_URL         RabbitMQ: публикация событий
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/pdflow/internal/api"
	"github.com/shaiso/pdflow/internal/cli"
	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/mq"
	"github.com/shaiso/pdflow/internal/repo"
	"github.com/shaiso/pdflow/internal/scheduler"
	"github.com/shaiso/pdflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting pdflow-server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("server failed", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, logger *slog.Logger) error {
	tc := &cli.Toolchain{
		WorkDir:     envOr("PDFLOW_WORKDIR", "build"),
		DockerImage: os.Getenv("PDFLOW_DOCKER_IMAGE"),
		Metrics:     telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Logger:      logger,
	}
	apiCfg := api.Config{
		Manifest: os.Getenv("PDFLOW_MANIFEST"),
		Logger:   logger,
	}

	// Расписания
	var schedules []domain.Schedule
	if path := os.Getenv("PDFLOW_SCHEDULES"); path != "" {
		var err error
		if schedules, err = scheduler.LoadSchedules(path); err != nil {
			return err
		}
		apiCfg.Manifests = make(map[string]string, len(schedules))
		for _, s := range schedules {
			apiCfg.Manifests[s.Name] = s.Manifest
		}
		logger.Info("schedules loaded", "count", len(schedules), "file", path)
	}

	var store scheduler.Store
	var leader *repo.Leader

	// Postgres (опционально)
	if os.Getenv("DB_URL") != "" {
		pool, err := repo.NewPool(ctx)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := repo.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("connected to database")

		history := repo.NewHistoryRepo(pool)
		tc.Recorder = history
		apiCfg.Runs = history.Runs
		apiCfg.NodeRuns = history.NodeRuns

		scheduleRepo := repo.NewScheduleRepo(pool)
		if err := scheduleRepo.Sync(ctx, schedules); err != nil {
			return err
		}
		store = scheduleRepo
		apiCfg.Schedules = scheduleRepo
		leader = repo.NewLeader(pool, repo.SchedulerLockKey)
	} else {
		mem := scheduler.NewMemoryStore(schedules)
		store = mem
		apiCfg.Schedules = mem
	}

	// RabbitMQ (опционально)
	var events *mq.Connection
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		conn, err := mq.NewConnection(mq.ConnectionConfig{
			URL:    url,
			Name:   "pdflow-server",
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer conn.Close()
		events = conn

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return err
		}
		logger.Debug("rabbitmq topology", "info", mq.TopologyInfo())
		tc.Events = mq.NewPublisher(conn, logger)
	}

	if err := tc.Open(); err != nil {
		return err
	}
	defer tc.Close()

	sched := scheduler.New(scheduler.Config{
		Store:  store,
		Runner: scheduler.NewFlowRunner(tc.NewController),
		Logger: logger,
	})

	tick := 30 * time.Second
	if v := os.Getenv("PDFLOW_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PDFLOW_TICK: %w", err)
		}
		tick = d
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		schedulerLoop(ctx, sched, leader, tick, logger)
	}()

	// HTTP: API + /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		// События не блокируют запуски, но потеря брокера видна снаружи.
		if events != nil && !events.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	api.NewHandler(apiCfg).RegisterRoutes(mux)

	addr := ":" + envOr("PDFLOW_PORT", "8080")
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Текущий job прерывается отменой ctx; ждём записи его итогов.
	if serveErr == nil {
		<-done
	}
	return serveErr
}

// schedulerLoop вызывает Tick, пока экземпляр остаётся лидером.
// Без Postgres лидер всегда этот экземпляр.
func schedulerLoop(ctx context.Context, sched *scheduler.Scheduler, leader *repo.Leader, period time.Duration, logger *slog.Logger) {
	tk := time.NewTicker(period)
	defer tk.Stop()

	if leader != nil {
		defer leader.Release(context.Background())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}

		if leader != nil {
			ok, err := leader.TryAcquire(ctx)
			if err != nil {
				logger.Warn("leader lock failed", "error", err)
				continue
			}
			if !ok {
				// не лидер — пропускаем тик
				continue
			}
		}

		if err := sched.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler tick failed", "error", err)
		}
	}
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
