package database

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"simplenotes/internal/config"
)

const probeQuery = "SELECT NOW()"

type poolHandle struct {
	Pool
	generation uint64
}

// Supervisor owns the connection pool and an approximate liveness flag.
// State is kept in atomics and no lock is held across I/O: a background
// probe and a request probe may interleave, and the last writer wins.
type Supervisor struct {
	cfg     config.DatabaseConfig
	factory PoolFactory
	clock   clock.Clock
	log     *logrus.Entry
	metrics *Metrics

	pool        atomic.Pointer[poolHandle]
	generations atomic.Uint64
	connected   atomic.Bool
	failures    atomic.Int32
	lastProbe   atomic.Int64 // unix nanos
	lastDBTime  atomic.Int64 // unix nanos
}

type Option func(*Supervisor)

func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

func WithPoolFactory(f PoolFactory) Option {
	return func(s *Supervisor) { s.factory = f }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// NewSupervisor builds the first pool immediately. It never fails: a pool
// that cannot be constructed is replaced by a stub that rejects every call.
func NewSupervisor(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		factory: NewPgxPool,
		clock:   clock.WallClock,
		log:     logrus.WithField("component", "db-supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.cfg.FailureThreshold <= 0 {
		s.cfg.FailureThreshold = 3
	}
	if s.cfg.ProbeTimeout <= 0 {
		s.cfg.ProbeTimeout = 5 * time.Second
	}
	if s.cfg.ProbeInterval <= 0 {
		s.cfg.ProbeInterval = 30 * time.Second
	}

	s.Recreate(ctx)
	return s
}

// Pool returns the current pool handle. It is never nil.
func (s *Supervisor) Pool() Pool {
	return s.pool.Load().Pool
}

// Generation identifies the current pool; it increases on every Recreate.
func (s *Supervisor) Generation() uint64 {
	return s.pool.Load().generation
}

func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

func (s *Supervisor) ConsecutiveFailures() int {
	return int(s.failures.Load())
}

// LastProbe returns the time of the most recent probe that reached the pool,
// or the zero time if none has.
func (s *Supervisor) LastProbe() time.Time {
	if n := s.lastProbe.Load(); n != 0 {
		return time.Unix(0, n)
	}
	return time.Time{}
}

// Recreate swaps in a fresh pool. The previous pool is closed in the
// background; errors and panics while closing are logged and dropped.
func (s *Supervisor) Recreate(ctx context.Context) {
	next, err := s.build(ctx)
	if err != nil {
		s.log.WithError(err).Error("could not create connection pool, database calls will fail until the next recreation")
		next = stubPool{}
	}

	gen := s.generations.Add(1)
	old := s.pool.Swap(&poolHandle{Pool: next, generation: gen})
	if old == nil {
		s.log.WithField("generation", gen).Info("connection pool created")
		return
	}

	s.metrics.Recreations.Inc()
	s.log.WithFields(logrus.Fields{
		"generation": gen,
		"previous":   old.generation,
	}).Warn("connection pool recreated")
	go s.closeQuietly(old)
}

func (s *Supervisor) build(ctx context.Context) (pool Pool, err error) {
	defer func() {
		if r := recover(); r != nil {
			pool, err = nil, fmt.Errorf("pool factory panicked: %v", r)
		}
	}()
	pool, err = s.factory(ctx, s.cfg, s.PoolError)
	if err == nil && pool == nil {
		err = ErrPoolUnavailable
	}
	return pool, err
}

func (s *Supervisor) closeQuietly(h *poolHandle) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("generation", h.generation).Errorf("closing old pool panicked: %v", r)
		}
	}()
	h.Close()
	s.log.WithField("generation", h.generation).Debug("old connection pool closed")
}

// Probe reports whether the database is reachable. Unless force is set, a
// connected supervisor answers without touching the network. Repeated
// failures against the same pool trigger a Recreate.
func (s *Supervisor) Probe(ctx context.Context, force bool) bool {
	if !force && s.connected.Load() {
		return true
	}

	h := s.pool.Load()
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	var now time.Time
	err := h.QueryRow(probeCtx, probeQuery).Scan(&now)
	s.lastProbe.Store(s.clock.Now().UnixNano())

	if err == nil {
		if !s.connected.Swap(true) {
			s.log.WithField("generation", h.generation).Info("database connection established")
		}
		s.failures.Store(0)
		s.lastDBTime.Store(now.UnixNano())
		s.metrics.Connected.Set(1)
		return true
	}

	s.connected.Store(false)
	s.metrics.Connected.Set(0)
	s.metrics.ProbeFailures.Inc()
	failures := int(s.failures.Add(1))
	s.log.WithError(err).WithFields(logrus.Fields{
		"generation": h.generation,
		"failures":   failures,
	}).Warn("database probe failed")

	if failures >= s.cfg.FailureThreshold {
		s.Recreate(ctx)
		s.failures.Store(0)
	}
	return false
}

// Run probes the database once, then every ProbeInterval until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.WithField("interval", s.cfg.ProbeInterval).Info("background database probe started")
	if s.Probe(ctx, true) {
		s.log.Info("initial database connection check passed")
	} else {
		s.log.Error("initial database connection check failed")
	}
	for {
		select {
		case <-ctx.Done():
			s.log.Info("background database probe stopped")
			return
		case <-s.clock.After(s.cfg.ProbeInterval):
			s.log.Debug("performing periodic database connection check")
			s.Probe(ctx, true)
		}
	}
}

// PoolError is the pool-level error listener. The supervisor is marked
// disconnected at once and the failing connection, if any, is discarded.
func (s *Supervisor) PoolError(err error, discard func()) {
	s.connected.Store(false)
	s.metrics.Connected.Set(0)
	s.log.WithError(err).Error("database connection lost")
	if discard != nil {
		discard()
	}
}

// Health queries the current pool directly and reports pool statistics. It
// leaves the liveness state untouched.
func (s *Supervisor) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	h := s.pool.Load()
	stats := map[string]string{
		"generation": strconv.FormatUint(h.generation, 10),
	}

	var now time.Time
	if err := h.QueryRow(ctx, probeQuery).Scan(&now); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["db_time"] = now.Format(time.RFC3339Nano)

	if p, ok := h.Pool.(*pgxpool.Pool); ok {
		st := p.Stat()
		stats["total_connections"] = strconv.Itoa(int(st.TotalConns()))
		stats["in_use"] = strconv.Itoa(int(st.AcquiredConns()))
		stats["idle"] = strconv.Itoa(int(st.IdleConns()))
		stats["max_connections"] = strconv.Itoa(int(st.MaxConns()))
		stats["empty_acquire_count"] = strconv.FormatInt(st.EmptyAcquireCount(), 10)
	}
	return stats
}

// Close closes the current pool and leaves a stub in its place.
func (s *Supervisor) Close() {
	old := s.pool.Swap(&poolHandle{Pool: stubPool{}, generation: s.generations.Add(1)})
	s.connected.Store(false)
	if old != nil {
		old.Close()
	}
}
