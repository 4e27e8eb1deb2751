// Package ledger records applied annotations in a SQLite audit database.
//
// Two drivers are supported. The default build links the pure Go
// modernc.org/sqlite; building with -tags cgo_sqlite switches to
// mattn/go-sqlite3. Open selects whichever is compiled in, so callers
// never name a driver themselves.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/internal/logging"
)

// DriverInfo identifies the SQLite driver compiled into the binary.
type DriverInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "purego" or "cgo"
	Package string `json:"package"`
}

// CGO reports whether the C driver is linked in.
func (d DriverInfo) CGO() bool {
	return d.Kind == "cgo"
}

// Driver reports the compiled-in SQLite driver.
func Driver() DriverInfo {
	return DriverInfo{Name: driverName, Kind: driverKind, Package: driverPackage}
}

// Entry is one recorded annotation.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Workbook   string    `json:"workbook"`
	Sheet      string    `json:"sheet"`
	Cell       string    `json:"cell"`
	BaseText   string    `json:"base_text"`
	Marker     string    `json:"marker"`
	Script     string    `json:"script"`
	Slot       int       `json:"slot"`
	HashBefore string    `json:"hash_before"`
	HashAfter  string    `json:"hash_after"`
}

const schema = `
CREATE TABLE IF NOT EXISTS annotations (
	id          TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL,
	workbook    TEXT NOT NULL,
	sheet       TEXT NOT NULL,
	cell        TEXT NOT NULL,
	base_text   TEXT NOT NULL,
	marker      TEXT NOT NULL,
	script      TEXT NOT NULL,
	slot        INTEGER NOT NULL,
	hash_before TEXT NOT NULL,
	hash_after  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS annotations_workbook ON annotations(workbook);
`

const columns = `id, recorded_at, workbook, sheet, cell, base_text, marker, script, slot, hash_before, hash_after`

// Fixed-width fractional seconds keep lexicographic order chronological,
// so ORDER BY on the TEXT column works.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Ledger is an open audit database.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens the ledger database at path, creating the file and schema on
// first use.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	// SQLite allows a single writer; a larger pool just trades useful
	// errors for SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("initialize", path, err)
	}
	logging.Debug("ledger opened", "path", path, "driver", driverName)
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file path the ledger was opened with.
func (l *Ledger) Path() string {
	return l.path
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts one entry. A missing ID gets a fresh UUID and a zero
// timestamp is set to the current UTC time; the stored entry is returned.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO annotations (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(timeLayout), e.Workbook, e.Sheet, e.Cell,
		e.BaseText, e.Marker, e.Script, e.Slot, e.HashBefore, e.HashAfter)
	if err != nil {
		return Entry{}, errors.Wrap(err, "record annotation")
	}
	return e, nil
}

// List returns recorded entries, newest first. A non-empty workbook limits
// the result to that workbook path.
func (l *Ledger) List(ctx context.Context, workbook string) ([]Entry, error) {
	query := `SELECT ` + columns + ` FROM annotations`
	var args []any
	if workbook != "" {
		query += ` WHERE workbook = ?`
		args = append(args, workbook)
	}
	query += ` ORDER BY recorded_at DESC, id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list annotations")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list annotations")
	}
	return entries, nil
}

// Get returns the entry with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+columns+` FROM annotations WHERE id = ?`, id)
	if err != nil {
		return Entry{}, errors.Wrap(err, "get annotation")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Entry{}, errors.Wrap(err, "get annotation")
		}
		return Entry{}, errors.NewNotFound("ledger entry", id)
	}
	return scanEntry(rows)
}

// Count returns the number of recorded entries.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count annotations")
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var recordedAt string
	err := rows.Scan(&e.ID, &recordedAt, &e.Workbook, &e.Sheet, &e.Cell,
		&e.BaseText, &e.Marker, &e.Script, &e.Slot, &e.HashBefore, &e.HashAfter)
	if err != nil {
		return Entry{}, errors.Wrap(err, "scan annotation")
	}
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, &errors.ParseError{
			Format:  "ledger timestamp",
			Message: recordedAt,
			Err:     err,
		}
	}
	e.Timestamp = ts
	return e, nil
}
