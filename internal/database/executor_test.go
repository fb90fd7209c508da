package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplenotes/internal/config"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pool unavailable", ErrPoolUnavailable, true},
		{"wrapped pool unavailable", fmt.Errorf("error creating note: %w", ErrPoolUnavailable), true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"refused errno", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"message mentions connection", errors.New("read tcp: connection reset by peer"), true},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601", Message: "syntax error at or near"}, false},
		{"no rows", pgx.ErrNoRows, false},
		{"closed pool", puddle.ErrClosedPool, true},
		{"wrapped closed pool", fmt.Errorf("error querying notes: %w", puddle.ErrClosedPool), true},
		{"capitalized constraint name", &pgconn.PgError{Code: "23503", Message: `insert or update on table "notes" violates foreign key constraint "Connection_owner_fk"`}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

type countingOp struct {
	calls int
	errs  []error
}

func (o *countingOp) run(context.Context, Pool) error {
	o.calls++
	if o.calls <= len(o.errs) {
		return o.errs[o.calls-1]
	}
	return nil
}

func executeAsync(e *Executor, ctx context.Context, op Operation) <-chan error {
	result := make(chan error, 1)
	go func() { result <- e.Execute(ctx, op) }()
	return result
}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return")
		return nil
	}
}

func TestExecuteSucceedsFirstTime(t *testing.T) {
	sup := &fakeProber{pool: &fakePool{}}
	e := NewExecutor(sup, testclock.NewClock(time.Now()), 500*time.Millisecond, nil)
	op := &countingOp{}

	require.NoError(t, e.Execute(context.Background(), op.run))
	assert.Equal(t, 1, op.calls)
	assert.Eventually(t, func() bool { return sup.probes.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), sup.forced.Load(), "the pre-flight probe is never forced")
}

func TestExecuteRetriesOnceAfterConnectionError(t *testing.T) {
	sup := &fakeProber{pool: &fakePool{}}
	clk := testclock.NewClock(time.Now())
	m := NewMetrics(nil)
	e := NewExecutor(sup, clk, 500*time.Millisecond, m)
	op := &countingOp{errs: []error{errRefused}}

	result := executeAsync(e, context.Background(), op.run)
	require.NoError(t, clk.WaitAdvance(500*time.Millisecond, time.Second, 1))

	require.NoError(t, waitResult(t, result))
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, int32(1), sup.forced.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryRetries))
}

func TestExecuteGivesUpAfterOneRetry(t *testing.T) {
	sup := &fakeProber{pool: &fakePool{}}
	clk := testclock.NewClock(time.Now())
	e := NewExecutor(sup, clk, 500*time.Millisecond, nil)
	second := fmt.Errorf("dial: %w", ErrPoolUnavailable)
	op := &countingOp{errs: []error{errRefused, second, errRefused}}

	result := executeAsync(e, context.Background(), op.run)
	require.NoError(t, clk.WaitAdvance(500*time.Millisecond, time.Second, 1))

	err := waitResult(t, result)
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, int32(1), sup.forced.Load())
}

func TestExecuteDoesNotRetryOtherErrors(t *testing.T) {
	sup := &fakeProber{pool: &fakePool{}}
	e := NewExecutor(sup, testclock.NewClock(time.Now()), 500*time.Millisecond, nil)
	violation := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	op := &countingOp{errs: []error{violation}}

	err := e.Execute(context.Background(), op.run)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)
	assert.Equal(t, 1, op.calls)
	assert.Equal(t, int32(0), sup.forced.Load())
}

func TestExecuteStopsWaitingWhenContextDone(t *testing.T) {
	sup := &fakeProber{pool: &fakePool{}}
	clk := testclock.NewClock(time.Now())
	e := NewExecutor(sup, clk, 500*time.Millisecond, nil)
	op := &countingOp{errs: []error{errRefused}}

	ctx, cancel := context.WithCancel(context.Background())
	result := executeAsync(e, ctx, op.run)
	require.NoError(t, clk.WaitAdvance(0, time.Second, 1))
	cancel()

	err := waitResult(t, result)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 1, op.calls)
}

func TestExecuteUsesPoolAfterForcedProbe(t *testing.T) {
	f := &fakeFactory{}
	f.failing.Store(true)
	cfg := testDatabaseConfig()
	cfg.FailureThreshold = 1
	clk := testclock.NewClock(time.Now())
	sup := NewSupervisor(context.Background(), cfg, WithPoolFactory(f.build), WithClock(clk))
	e := NewExecutor(sup, clk, 500*time.Millisecond, nil)

	var seen []Pool
	op := func(_ context.Context, db Pool) error {
		seen = append(seen, db)
		if len(seen) == 1 {
			return errRefused
		}
		return nil
	}

	result := executeAsync(e, context.Background(), op)
	require.NoError(t, clk.WaitAdvance(500*time.Millisecond, time.Second, 1))
	require.NoError(t, waitResult(t, result))

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1], "retry must run on the recreated pool")
}

func TestExecuteRetriesQueryOnReplacedPool(t *testing.T) {
	old, err := NewPgxPool(context.Background(), config.DatabaseConfig{URL: "postgres://notes@127.0.0.1:1/notes"}, nil)
	require.NoError(t, err)
	old.Close()

	sup := &fakeProber{pool: &fakePool{}}
	clk := testclock.NewClock(time.Now())
	e := NewExecutor(sup, clk, 500*time.Millisecond, nil)

	calls := 0
	op := func(ctx context.Context, db Pool) error {
		calls++
		if calls == 1 {
			db = old
		}
		var now time.Time
		return db.QueryRow(ctx, "SELECT NOW()").Scan(&now)
	}

	result := executeAsync(e, context.Background(), op)
	require.NoError(t, clk.WaitAdvance(500*time.Millisecond, time.Second, 1))

	require.NoError(t, waitResult(t, result))
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(1), sup.forced.Load())
}
