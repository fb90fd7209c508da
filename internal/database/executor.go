package database

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"
)

// Operation issues one logical query against db.
type Operation func(ctx context.Context, db Pool) error

type prober interface {
	Probe(ctx context.Context, force bool) bool
	Pool() Pool
}

// Executor runs operations with at most one retry, and only for connection
// errors.
type Executor struct {
	sup     prober
	clock   clock.Clock
	delay   time.Duration
	log     *logrus.Entry
	metrics *Metrics
}

func NewExecutor(sup prober, clk clock.Clock, delay time.Duration, metrics *Metrics) *Executor {
	if clk == nil {
		clk = clock.WallClock
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Executor{
		sup:     sup,
		clock:   clk,
		delay:   delay,
		log:     logrus.WithField("component", "db-executor"),
		metrics: metrics,
	}
}

// Execute runs op against the current pool. A liveness probe is started
// alongside but never waited on. When op fails with a connection error the
// executor waits, forces a probe (which may rebuild the pool) and runs op
// once more, returning whatever that second attempt returns.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	go e.sup.Probe(context.WithoutCancel(ctx), false)

	var (
		attempt int
		lastErr error
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempt++
			if attempt > 1 {
				e.metrics.QueryRetries.Inc()
				e.sup.Probe(ctx, true)
			}
			lastErr = op(ctx, e.sup.Pool())
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return !IsConnectionError(err)
		},
		NotifyFunc: func(err error, n int) {
			e.log.WithError(err).WithField("attempt", n).Warn("query failed with connection error")
		},
		Attempts: 2,
		Delay:    e.delay,
		Clock:    e.clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if lastErr == nil {
		// retry rejected its own arguments; nothing ran.
		return err
	}
	return lastErr
}
