package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// MySQL server error numbers that mean the session is gone.
const (
	mysqlServerShutdown    = 1053
	mysqlAbortedConnection = 1152
	mysqlConnectionKilled  = 1927
)

// IsFatal reports whether err means the pool's connections can no longer be
// trusted, as opposed to a statement-level failure. Timeouts and cancellations are
// never fatal: they belong to the caller.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08 connection exception, 57P01..57P03 server shutting down
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03":
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlServerShutdown, mysqlAbortedConnection, mysqlConnectionKilled:
			return true
		}
		return false
	}

	var netErr *net.OpError
	return errors.As(err, &netErr)
}
