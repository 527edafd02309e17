package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/steveyegge/mealsync/internal/storage"
)

// MySQL server error numbers that mean the account may not do this.
var permissionErrors = map[uint16]bool{
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1142: true, // ER_TABLEACCESS_DENIED_ERROR
	1143: true, // ER_COLUMNACCESS_DENIED_ERROR
	1227: true, // ER_SPECIFIC_ACCESS_DENIED_ERROR
	1370: true, // ER_PROCACCESS_DENIED_ERROR
}

// MySQL server error numbers worth retrying.
var transientErrors = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR
	1205: true, // ER_LOCK_WAIT_TIMEOUT
	1213: true, // ER_LOCK_DEADLOCK
	2006: true, // CR_SERVER_GONE_ERROR
	2013: true, // CR_SERVER_LOST
}

// classify maps a driver error onto the storage taxonomy and adds op context.
// Caller cancellation is returned as is so retries stop.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch {
		case permissionErrors[me.Number]:
			return fmt.Errorf("%s: %w: %v", op, storage.ErrPermissionDenied, err)
		case transientErrors[me.Number]:
			return fmt.Errorf("%s: %w: %v", op, storage.ErrTransientIO, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if isRetryableError(err) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrTransientIO, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isRetryableError reports connection-level failures that a retry can fix.
func isRetryableError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
		"database is read only",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
