package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-box-office/internal/apperr"
)

// MySQL server error numbers that indicate lock contention.  Both resolve
// themselves when the competing transaction finishes, so the caller may
// retry with backoff.
const (
	mysqlErrLockDeadlock    = 1213 // ER_LOCK_DEADLOCK
	mysqlErrLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
)

// classify translates a driver-level error into one of the store error
// kinds.  sql.ErrNoRows is deliberately not handled here: absence means
// different things at different call sites (a missing seat is the caller's
// NOT_FOUND, a missing reservation during expire is benign), so each
// operation maps it with its own message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err // already classified
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, err, "store operation timed out")
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrLockDeadlock:
			return apperr.Wrap(apperr.KindStoreConflict, err, "deadlock detected")
		case mysqlErrLockWaitTimeout:
			return apperr.Wrap(apperr.KindStoreConflict, err, "lock wait timeout")
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "store connection lost")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "store unreachable")
	}
	return err
}
