package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"simplenotes/internal/config"
)

var errRefused = &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}

// fakePool answers probe queries with failProbe and counts calls.
type fakePool struct {
	id        int
	failProbe atomic.Bool
	queries   atomic.Int32
	closed    atomic.Bool
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	p.queries.Add(1)
	return nil, errors.New("not implemented")
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	p.queries.Add(1)
	if p.failProbe.Load() {
		return errRow{err: errRefused}
	}
	return timeRow{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	p.queries.Add(1)
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Ping(context.Context) error { return nil }

func (p *fakePool) Close() { p.closed.Store(true) }

type timeRow struct{ t time.Time }

func (r timeRow) Scan(dest ...any) error {
	*dest[0].(*time.Time) = r.t
	return nil
}

// fakeFactory hands out a new fakePool per call, failing probes on every
// pool when failing is set.
type fakeFactory struct {
	mu      sync.Mutex
	failing atomic.Bool
	created []*fakePool
	err     error
}

func (f *fakeFactory) build(_ context.Context, _ config.DatabaseConfig, _ ErrorListener) (Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePool{id: len(f.created) + 1}
	p.failProbe.Store(f.failing.Load())
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) last() *fakePool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[len(f.created)-1]
}

// fakeProber records probes for executor tests.
type fakeProber struct {
	pool   Pool
	probes atomic.Int32
	forced atomic.Int32
}

func (p *fakeProber) Probe(_ context.Context, force bool) bool {
	p.probes.Add(1)
	if force {
		p.forced.Add(1)
	}
	return true
}

func (p *fakeProber) Pool() Pool { return p.pool }

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		ProbeInterval:    30 * time.Second,
		ProbeTimeout:     time.Second,
		FailureThreshold: 3,
		RetryDelay:       500 * time.Millisecond,
	}
}
