package api

import (
	"os"
	"strings"

	"fleetroute/internal/config"
	"fleetroute/internal/coordopt"
	"fleetroute/internal/jobs"
	"fleetroute/internal/matrix"
	"fleetroute/internal/orders"
	"fleetroute/internal/store"
	"fleetroute/internal/traffic"
)

type Server struct {
	Store    store.Store
	Traffic  *traffic.Client
	Builder  *matrix.Builder
	Runner   *jobs.Runner
	CoordOpt *coordopt.Optimizer
	Broker   EventBroker
	Cfg      config.Config
}

// NewServer wires the full service. With no DATABASE_URL jobs live in
// memory; with no REDIS_URL events stay in-process and traffic flow lookups
// go uncached.
func NewServer(cfg config.Config) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir("db/migrations")
		}
		st = sp
	}

	var broker EventBroker
	var trafficOpts []traffic.Option
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
			trafficOpts = append(trafficOpts, traffic.WithCache(rb.Client(), cfg.TrafficCacheTTL))
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	trafficOpts = append(trafficOpts, traffic.WithRateLimit(cfg.TrafficRateLimit))

	tc := traffic.NewClient(cfg.TrafficServiceURL, trafficOpts...)
	builder := matrix.NewBuilder(tc, cfg.MatrixConcurrency)
	oc := orders.NewClient(cfg.OrderServiceURL)
	runner := jobs.NewRunner(st, builder, oc, broker, cfg.SolverTimeBudget, cfg.JobWorkers, cfg.JobQueueSize)

	return &Server{
		Store:    st,
		Traffic:  tc,
		Builder:  builder,
		Runner:   runner,
		CoordOpt: coordopt.New(tc, builder, cfg.SolverTimeBudget),
		Broker:   broker,
		Cfg:      cfg,
	}, nil
}
