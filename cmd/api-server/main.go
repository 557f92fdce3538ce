package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/api"
	"github.com/hackgods/care-scheduling/internal/appointment"
	"github.com/hackgods/care-scheduling/internal/config"
	"github.com/hackgods/care-scheduling/internal/db"
	"github.com/hackgods/care-scheduling/internal/directory"
	"github.com/hackgods/care-scheduling/internal/logging"
	"github.com/hackgods/care-scheduling/internal/metrics"
	"github.com/hackgods/care-scheduling/internal/notify"
	redisclient "github.com/hackgods/care-scheduling/internal/redis"
	"github.com/hackgods/care-scheduling/internal/slot"
)

var version = "dev"

const nameCacheTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}

	log := logging.New(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"env":     cfg.Env,
		"port":    cfg.HTTPPort,
		"storage": cfg.StorageDriver,
		"redis":   cfg.RedisEnabled(),
	}).Info("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.OptionsFromConfig(cfg, "api-server"))
		if err != nil {
			log.WithError(err).Fatal("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("error closing redis")
			}
		}()
		log.Info("connected to Redis")
	}

	hub := notify.NewHub(log)
	defer hub.Close()

	var (
		slotStore slot.Store
		repo      appointment.Repository
		dir       directory.Directory
		publisher notify.Publisher
		checks    []api.Check
	)

	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := slot.NewMemoryStore(time.Now)
		memRepo := appointment.NewMemoryRepository()
		slotStore, repo = store, memRepo
		dir = directory.NewMemory()
		publisher = hub

		// Nothing else shares an in-memory store, so this process reconciles it.
		reconciler := appointment.NewReconciler(store, memRepo, cfg.ReconcileGrace, log, m)
		go reconciler.Start(rootCtx, cfg.WorkerInterval)

	case config.DriverPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.WithError(err).Fatal("postgres connection error")
		}
		defer pgPool.Close()
		log.Info("connected to Postgres")

		slotStore = slot.NewPgStore(pgPool)
		repo = appointment.NewPgRepository(pgPool)
		dir = directory.NewPgDirectory(pgPool)
		outbox := notify.NewOutboxStore(pgPool)
		publisher = outbox
		checks = append(checks, api.PostgresCheck(pgPool))

		if rdb != nil {
			dir = directory.NewCached(dir, rdb, nameCacheTTL, log)
			go notify.NewRedisRelay(rdb, cfg.NotifyChannel, hub, log).Run(rootCtx, nil)
		} else {
			// Without redis there is no fan-in channel; deliver the outbox to local dashboards.
			dispatcher := notify.NewDispatcher(outbox, hub, log).
				WithBatchSize(cfg.OutboxBatchSize).
				WithInterval(cfg.WorkerInterval)
			go dispatcher.Start(rootCtx)
		}
	}

	if rdb != nil {
		checks = append(checks, api.RedisCheck(rdb))
	}

	emitter := notify.NewAsyncEmitter(
		notify.NewBuilder(dir, log),
		publisher,
		cfg.NotifyBuffer,
		notify.WithEmitterLogger(log),
		notify.WithEmitterMetrics(m),
	)

	opts := []appointment.Option{
		appointment.WithEmitter(emitter),
		appointment.WithLogger(log),
		appointment.WithMetrics(m),
	}
	if rdb != nil {
		opts = append(opts, appointment.WithLocker(redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)))
	}

	router := api.NewRouter(api.RouterConfig{
		Slots:        slot.NewService(slotStore, slot.WithLogger(log), slot.WithMetrics(m)),
		Appointments: appointment.NewService(repo, slotStore, opts...),
		Health:       api.NewHealthHandler(cfg.Env, version, checks...),
		Dashboards:   hub,
		Gatherer:     reg,
		Location:     cfg.ClinicTimezone,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	emitter.Close()

	log.Info("api-server stopped")
}
