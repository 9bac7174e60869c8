package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"certhub/internal/certificate/cache"
	"certhub/internal/certificate/service"
	"certhub/internal/certificate/store"
	"certhub/internal/platform/config"
	"certhub/internal/platform/database"
	"certhub/internal/platform/logger"
	"certhub/internal/platform/metrics"
	redisclient "certhub/internal/platform/redis"
	"certhub/internal/retention"
)

// app holds the long-lived components shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	dialect  database.Dialect
	manager  *database.Manager
	redis    *goredis.Client
	service  *service.Service
	sweeper  *retention.Sweeper
}

func newApp(ctx context.Context) (*app, error) {
	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log)

	d, err := database.LookupDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	dbOpts := []database.Option{
		database.WithMaxAttempts(cfg.Database.MaxRetries),
		database.WithRecreateDelay(cfg.Database.RecreateDelay),
		database.WithTimeouts(cfg.Database.ConnectTimeout, cfg.Database.AcquireTimeout),
		database.WithLogger(log),
		database.WithMetrics(m),
	}
	if !cfg.Database.SkipInit {
		dbOpts = append(dbOpts, database.WithInitializer(store.SchemaInitializer(d)))
	}
	mgr := database.NewManager(database.Opener(cfg.Database), dbOpts...)

	a := &app{
		cfg:      cfg,
		logger:   log,
		registry: reg,
		metrics:  m,
		dialect:  d,
		manager:  mgr,
	}

	svcOpts := []service.Option{
		service.WithQueryTimeout(cfg.Database.QueryTimeout),
		service.WithLogger(log),
		service.WithMetrics(m),
	}
	client, err := redisclient.New(ctx, cfg.Cache)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("redis unavailable, lookups will not be cached")
	case client != nil:
		a.redis = client
		svcOpts = append(svcOpts, service.WithCache(cache.NewRedis(client,
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithLogger(log),
			cache.WithMetrics(m),
		)))
	}
	a.service = service.New(mgr, store.New(d), svcOpts...)
	a.sweeper = retention.New(a.service, cfg.Server.UploadDir, cfg.Retention,
		retention.WithLogger(log),
		retention.WithMetrics(m),
	)
	return a, nil
}

// startDatabase makes the first connection attempt. Later attempts run in the
// background.
func (a *app) startDatabase() error {
	a.logger.Info().
		Str("driver", a.dialect.Name).
		Str("address", a.dialect.Address(a.cfg.Database)).
		Str("database", a.cfg.Database.Name).
		Msg("connecting to database")
	return a.manager.Start()
}

func (a *app) close() {
	if err := a.manager.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing database pool failed")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing redis client failed")
		}
	}
}
