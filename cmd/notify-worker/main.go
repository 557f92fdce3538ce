package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/appointment"
	"github.com/hackgods/care-scheduling/internal/config"
	"github.com/hackgods/care-scheduling/internal/db"
	"github.com/hackgods/care-scheduling/internal/logging"
	"github.com/hackgods/care-scheduling/internal/metrics"
	"github.com/hackgods/care-scheduling/internal/notify"
	redisclient "github.com/hackgods/care-scheduling/internal/redis"
	"github.com/hackgods/care-scheduling/internal/slot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}

	log := logging.New(cfg.LogLevel)
	if cfg.StorageDriver != config.DriverPostgres {
		log.WithField("storage", cfg.StorageDriver).Fatal("notify-worker needs the postgres storage driver")
	}
	if !cfg.RedisEnabled() {
		log.Fatal("notify-worker needs REDIS_URL or REDIS_ADDR")
	}

	log.WithFields(logrus.Fields{
		"env":      cfg.Env,
		"interval": cfg.WorkerInterval,
		"channel":  cfg.NotifyChannel,
		"grace":    cfg.ReconcileGrace,
	}).Info("notify-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.WithError(err).Fatal("postgres connection error")
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.OptionsFromConfig(cfg, "notify-worker"))
	if err != nil {
		log.WithError(err).Fatal("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("error closing redis")
		}
	}()
	log.Info("connected to Redis")

	m := metrics.New(nil)
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server error")
		}
	}()

	dispatcher := notify.NewDispatcher(
		notify.NewOutboxStore(pgPool),
		notify.NewRedisPublisher(rdb, cfg.NotifyChannel),
		log,
	).WithBatchSize(cfg.OutboxBatchSize).WithInterval(cfg.WorkerInterval)

	reconciler := appointment.NewReconciler(
		slot.NewPgStore(pgPool),
		appointment.NewPgRepository(pgPool),
		cfg.ReconcileGrace,
		log,
		m,
	)

	// Run once at startup
	if n, err := reconciler.RunOnce(rootCtx); err != nil {
		log.WithError(err).Error("initial reconcile pass failed")
	} else if n > 0 {
		log.WithField("released", n).Info("initial reconcile pass released slots")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Start(rootCtx)
	}()
	go func() {
		defer wg.Done()
		reconciler.Start(rootCtx, cfg.WorkerInterval)
	}()

	<-rootCtx.Done()
	log.Info("shutdown signal received, stopping notify-worker")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown failed")
	}
	log.Info("notify-worker stopped")
}
