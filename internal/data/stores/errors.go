package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/colonyops/farepilot/internal/data/db"
)

// IsBusyError reports whether err is SQLITE_BUSY.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}

var corruptMessages = []string{
	"database disk image is malformed",
	"file is not a database",
}

// IsCorruptionError reports whether err means the journal file is unreadable.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}
	msg := err.Error()
	for _, m := range corruptMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err is sql.ErrNoRows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// sqlLimit maps a non-positive limit to "no limit".
func sqlLimit(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit)
}

// Quarantine moves the journal and its -wal/-shm companions aside as
// farepilot.db.corrupt.<timestamp> and returns the new database path. A
// missing journal is not an error. Companions that cannot be moved are
// removed so SQLite does not replay them into a fresh file.
func Quarantine(dataDir string, now time.Time) (string, error) {
	dbPath := filepath.Join(dataDir, db.FileName)
	moved := fmt.Sprintf("%s.corrupt.%s", dbPath, now.Format("20060102-150405"))

	if err := os.Rename(dbPath, moved); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("quarantine journal: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		src := dbPath + suffix
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, moved+suffix); err != nil {
			if rmErr := os.Remove(src); rmErr != nil {
				return "", fmt.Errorf("quarantine %s: %w", suffix, errors.Join(err, rmErr))
			}
		}
	}
	return moved, nil
}

// OpenJournal opens the database. When the file is corrupt it is
// quarantined and a fresh journal is created; moved holds the old file's
// new path in that case.
func OpenJournal(dataDir string, opts db.OpenOptions) (database *db.DB, moved string, err error) {
	database, err = db.Open(dataDir, opts)
	if err == nil || !IsCorruptionError(err) {
		return database, "", err
	}

	moved, qErr := Quarantine(dataDir, time.Now())
	if qErr != nil {
		return nil, "", errors.Join(err, qErr)
	}
	database, err = db.Open(dataDir, opts)
	if err != nil {
		return nil, moved, fmt.Errorf("reopen after quarantine: %w", err)
	}
	return database, moved, nil
}
