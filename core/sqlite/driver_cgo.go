//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
// This is used when the cgo_sqlite build tag is set.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)

// driverParams renders connection pragmas in mattn's _name=value form.
func driverParams(busyTimeoutMS int, wal bool) []string {
	params := []string{
		fmt.Sprintf("_busy_timeout=%d", busyTimeoutMS),
		"_foreign_keys=1",
	}
	if wal {
		params = append(params, "_journal_mode=WAL")
	}
	return params
}
