//go:build !cgo_sqlite

package sqlite

import (
	"fmt"

	_ "modernc.org/sqlite" // registers "sqlite"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

// driverParams renders connection pragmas in modernc's _pragma=name(value) form.
func driverParams(busyTimeoutMS int, wal bool) []string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMS),
		"_pragma=foreign_keys(1)",
	}
	if wal {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	return params
}
