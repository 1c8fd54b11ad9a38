package syncengine

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// errBrowserLockHeld is never returned to callers (§7: "BrowserLockHeld —
// triggers the write-queue deferral path; never surfaced to callers"); it
// names the deferral condition in ApplyToProfile's log line.
var errBrowserLockHeld = errors.New("syncengine: browser profile lock held")

// isStateIndexBusy reports whether err is a retryable SQLITE_BUSY/LOCKED
// condition (§7: "StateIndexBusy — treated as retry-after").
func isStateIndexBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
