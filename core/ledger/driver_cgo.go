//go:build cgo_sqlite

// Build with -tags cgo_sqlite to link the C SQLite library instead of the
// pure Go port. Requires CGO_ENABLED=1.

package ledger

import (
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName    = "sqlite3"
	driverKind    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)
