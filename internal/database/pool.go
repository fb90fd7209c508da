package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"simplenotes/internal/config"
)

// Pool is the subset of *pgxpool.Pool the service issues queries through.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// ErrorListener receives asynchronous connection failures surfaced by a
// pool. discard, when non-nil, removes the offending connection from the
// pool instead of returning it to the idle set.
type ErrorListener func(err error, discard func())

// PoolFactory builds a pool for the given configuration. Implementations
// must register onError so broken connections are reported.
type PoolFactory func(ctx context.Context, cfg config.DatabaseConfig, onError ErrorListener) (Pool, error)

var ErrMissingURL = errors.New("DATABASE_URL is not set")

var (
	_ Pool            = (*pgxpool.Pool)(nil)
	_ Pool            = stubPool{}
	_ pgx.QueryTracer = connErrorTracer{}
)

// NewPgxPool is the production PoolFactory. Pool construction does not dial;
// connections are established lazily (and MinConns in the background).
func NewPgxPool(ctx context.Context, cfg config.DatabaseConfig, onError ErrorListener) (Pool, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= pcfg.MaxConns {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.IdleTimeout > 0 {
		pcfg.MaxConnIdleTime = cfg.IdleTimeout
	}
	if cfg.ProbeInterval > 0 {
		pcfg.HealthCheckPeriod = cfg.ProbeInterval
	}

	pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: cfg.KeepAlive}
	pcfg.ConnConfig.DialFunc = dialer.DialContext

	// Managed providers commonly present certificates that do not chain to a
	// system root.
	if !cfg.RejectUnauthorized {
		relaxTLS(&pcfg.ConnConfig.Config)
	}

	if onError != nil {
		pcfg.ConnConfig.OnPgError = pgErrorHandler(onError)
		pcfg.ConnConfig.Tracer = connErrorTracer{onError: onError}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("error creating pool: %w", err)
	}
	return pool, nil
}

func relaxTLS(cfg *pgconn.Config) {
	if cfg.TLSConfig != nil {
		cfg.TLSConfig.InsecureSkipVerify = true
		cfg.TLSConfig.VerifyPeerCertificate = nil
	}
	for _, fb := range cfg.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig.InsecureSkipVerify = true
			fb.TLSConfig.VerifyPeerCertificate = nil
		}
	}
}

// pgErrorHandler reports FATAL server errors (admin shutdown, idle session
// timeouts) as they arrive and closes the connection. Other errors leave the
// connection usable.
func pgErrorHandler(onError ErrorListener) pgconn.PgErrorHandler {
	return func(_ *pgconn.PgConn, pgErr *pgconn.PgError) bool {
		if !strings.EqualFold(pgErr.Severity, "FATAL") {
			return true
		}
		onError(pgErr, nil)
		return false
	}
}

// connErrorTracer reports queries that failed because the connection broke.
// pgxpool destroys closed connections on release, so nothing is discarded here.
type connErrorTracer struct {
	onError ErrorListener
}

func (t connErrorTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return ctx
}

func (t connErrorTracer) TraceQueryEnd(_ context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if IsConnectionError(data.Err) {
		t.onError(data.Err, nil)
	}
}

// stubPool stands in when a real pool could not be built so callers always
// have a handle to call into. Every operation fails with ErrPoolUnavailable.
type stubPool struct{}

func (stubPool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, ErrPoolUnavailable
}

func (stubPool) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{err: ErrPoolUnavailable}
}

func (stubPool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, ErrPoolUnavailable
}

func (stubPool) Ping(context.Context) error { return ErrPoolUnavailable }

func (stubPool) Close() {}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
