//go:build !cgo_sqlite

package ledger

import (
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const (
	driverName    = "sqlite"
	driverKind    = "purego"
	driverPackage = "modernc.org/sqlite"
)
