package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/db"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/queue/redisclient"
	"github.com/geocoder89/authservice/internal/queue/worker"
	"github.com/geocoder89/authservice/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

const blockTimeout = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("prod").Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	if cfg.RedisAddr == "" {
		log.Error("worker needs REDIS_ADDR")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.OTELEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, cfg.Tracer(cfg.OTELServiceName+"-worker"))
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	pool, err := db.NewPool(ctx, cfg.DBURL, 4)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rc, err := redisclient.Connect(ctx, redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		// BRPOP blocks server side for blockTimeout
		ReadTimeout: blockTimeout + 2*time.Second,
	})
	if err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}
	defer rc.Close()

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:      workerID,
		Concurrency:   2,
		BlockTimeout:  blockTimeout,
		ShutdownGrace: 10 * time.Second,
	},
		audit.NewQueue(rc.Raw(), cfg.AuditQueueKey),
		postgres.NewActivityLogsRepo(pool, prom),
		prom,
		observability.NewDrainMetrics(),
		log,
	)

	healthSrv := &http.Server{
		Addr:              cfg.WorkerHealthAddr,
		Handler:           w.HealthHandler(pool, rc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "addr", cfg.WorkerHealthAddr)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
