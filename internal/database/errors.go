package database

import (
	"errors"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
)

var ErrPoolUnavailable = errors.New("database connection pool not available")

// connectionCodes are SQLSTATE (and errno) codes meaning the server went
// away or refused us, as opposed to rejecting the statement.
var connectionCodes = map[string]struct{}{
	"08000":        {}, // connection_exception
	"08001":        {}, // sqlclient_unable_to_establish_sqlconnection
	"08003":        {}, // connection_does_not_exist
	"08004":        {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08006":        {}, // connection_failure
	"57P01":        {}, // admin_shutdown
	"57P02":        {}, // crash_shutdown
	"57P03":        {}, // cannot_connect_now
	"ECONNREFUSED": {},
}

// IsConnectionError reports whether err means the database could not be
// reached, in which case a retry against a fresh pool may succeed.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPoolUnavailable) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// A pool swapped out by Recreate while a request still held it.
	if errors.Is(err, puddle.ErrClosedPool) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := connectionCodes[pgErr.Code]; ok {
			return true
		}
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		if _, ok := connectionCodes[coded.SQLState()]; ok {
			return true
		}
	}

	return strings.Contains(err.Error(), "connection")
}
