//go:build !cgo

package docstore

import (
	"context"
	"database/sql"
	"errors"
	"io"
)

var errNoCGO = errors.New("dolt: this binary was built without CGO support; rebuild with CGO_ENABLED=1")

// openEmbedded returns an error in non-CGO builds. Point remote.dsn at a
// dolt sql-server and use the mysql driver instead.
func openEmbedded(_ context.Context, _, _ string) (*sql.DB, io.Closer, error) {
	return nil, nil, errNoCGO
}
