package database

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"simplenotes/internal/config"
	"simplenotes/internal/logger"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Execute runs op against the current pool, retrying once on a
	// connection error.
	Execute(ctx context.Context, op Operation) error

	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Connected reports the result of the most recent probe.
	Connected() bool

	// Run checks the connection at startup, then probes periodically until
	// ctx is done.
	Run(ctx context.Context)

	// Close terminates the database connection pool.
	Close()
}

type service struct {
	*Supervisor
	*Executor
}

// New builds the service. A missing or invalid DATABASE_URL is logged and
// the service starts anyway; every query then fails as unavailable.
func New(ctx context.Context, cfg config.DatabaseConfig, reg prometheus.Registerer, opts ...Option) Service {
	if cfg.URL == "" {
		logrus.Error("DATABASE_URL environment variable is not set")
	}
	logrus.WithField("database", logger.MaskURL(cfg.URL)).Info("attempting to connect to database")

	metrics := NewMetrics(reg)
	sup := NewSupervisor(ctx, cfg, append([]Option{WithMetrics(metrics)}, opts...)...)
	return &service{
		Supervisor: sup,
		Executor:   NewExecutor(sup, sup.clock, cfg.RetryDelay, metrics),
	}
}
