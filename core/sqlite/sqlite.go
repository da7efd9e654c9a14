// Package sqlite provides a unified SQLite interface supporting both
// pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) implementations.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3
//
// Use Open() instead of sql.Open() so the DSN carries the pragmas the
// selected driver understands.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// MemoryPath is the DSN path for a private in-memory database.
const MemoryPath = ":memory:"

// DefaultBusyTimeoutMS is how long a writer waits on a locked database.
const DefaultBusyTimeoutMS = 5000

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Options tune the connection.
type Options struct {
	// ReadOnly opens the file with mode=ro.
	ReadOnly bool

	// BusyTimeoutMS overrides DefaultBusyTimeoutMS when positive.
	BusyTimeoutMS int

	// WAL enables write-ahead logging. Ignored for in-memory databases.
	WAL bool
}

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return path == MemoryPath || path == "" || strings.HasPrefix(path, "file::memory:")
}

// DSN builds the data source name for path under the active driver.
func DSN(path string, opts Options) string {
	if path == "" {
		path = MemoryPath
	}
	timeout := opts.BusyTimeoutMS
	if timeout <= 0 {
		timeout = DefaultBusyTimeoutMS
	}
	params := driverParams(timeout, opts.WAL && !IsMemory(path))
	if opts.ReadOnly {
		// mode=ro is a URI parameter; both drivers need the file: form for it.
		if !strings.HasPrefix(path, "file:") {
			path = "file:" + path
		}
		params = append(params, "mode=ro")
	}
	if len(params) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Open opens a SQLite database at path using the appropriate driver.
// In-memory databases are pinned to one connection: every new connection
// to ":memory:" would otherwise see a fresh, empty database.
func Open(path string, opts Options) (*sql.DB, error) {
	db, err := sql.Open(driverName, DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}
	if IsMemory(path) {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: DriverType(),
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
