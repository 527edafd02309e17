package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ncruces/go-sqlite3"

	"github.com/steveyegge/mealsync/internal/storage"
)

// wrapDBError wraps a database error with operation context and maps driver
// conditions onto the storage sentinels.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case errors.Is(err, sqlite3.BUSY), errors.Is(err, sqlite3.LOCKED):
		return fmt.Errorf("%s: %w: %v", op, storage.ErrTransientIO, err)
	case errors.Is(err, sqlite3.READONLY), errors.Is(err, sqlite3.PERM), errors.Is(err, sqlite3.AUTH):
		return fmt.Errorf("%s: %w: %v", op, storage.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
