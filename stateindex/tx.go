package stateindex

import (
	"database/sql"
	"time"

	"github.com/wolfpack-dev/wolfpack/clock"
)

// Tx is a single transaction against the state index. The materializer
// applies one envelope per Tx so the applied_events insert and the
// per-variant mutation commit or roll back together (§4.5 step 2: "inside a
// single transaction with the insert into applied_events").
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a new transaction, committing on success and
// rolling back if fn returns an error.
func (idx *Index) WithTx(fn func(*Tx) error) error {
	sqlTx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// HasApplied reports whether eventID is already recorded in applied_events.
func (t *Tx) HasApplied(eventID string) (bool, error) {
	var n int
	err := t.tx.QueryRow(`SELECT COUNT(1) FROM applied_events WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkApplied records eventID as applied. Callers must have already checked
// HasApplied; applied_events is append-only (§3 invariant).
func (t *Tx) MarkApplied(eventID, originDevice string, originTimestamp time.Time) error {
	_, err := t.tx.Exec(
		`INSERT INTO applied_events (event_id, origin_device, origin_timestamp) VALUES (?, ?, ?)`,
		eventID, originDevice, originTimestamp.UnixNano(),
	)
	return err
}

// UpsertExtension inserts or replaces an extensions row.
func (t *Tx) UpsertExtension(ext Extension) error {
	_, err := t.tx.Exec(
		`INSERT INTO extensions (extension_id, name, source_url, added_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(extension_id) DO UPDATE SET name = excluded.name, source_url = excluded.source_url`,
		ext.ID, ext.Name, ext.SourceURL, ext.AddedAt.UnixNano(),
	)
	return err
}

// DeleteExtension removes the extensions row for id, if present.
func (t *Tx) DeleteExtension(id string) error {
	_, err := t.tx.Exec(`DELETE FROM extensions WHERE extension_id = ?`, id)
	return err
}

// UpsertExtensionPackage inserts or replaces an extension_packages row.
func (t *Tx) UpsertExtensionPackage(pkg ExtensionPackage) error {
	_, err := t.tx.Exec(
		`INSERT INTO extension_packages (extension_id, version, source_kind, source_data, package_blob, installed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(extension_id) DO UPDATE SET version = excluded.version, source_kind = excluded.source_kind,
			source_data = excluded.source_data, package_blob = excluded.package_blob, installed_at = excluded.installed_at`,
		pkg.ExtensionID, pkg.Version, pkg.SourceKind, pkg.SourceData, pkg.PackageBlob, pkg.InstalledAt.UnixNano(),
	)
	return err
}

// DeleteExtensionPackage removes the extension_packages row for id, if present.
func (t *Tx) DeleteExtensionPackage(id string) error {
	_, err := t.tx.Exec(`DELETE FROM extension_packages WHERE extension_id = ?`, id)
	return err
}

// UpsertContainer inserts or replaces a containers row.
func (t *Tx) UpsertContainer(c Container) error {
	_, err := t.tx.Exec(
		`INSERT INTO containers (container_id, name, color, icon) VALUES (?, ?, ?, ?)
		 ON CONFLICT(container_id) DO UPDATE SET name = excluded.name, color = excluded.color, icon = excluded.icon`,
		c.ID, c.Name, c.Color, c.Icon,
	)
	return err
}

// DeleteContainer removes the containers row for id, if present.
func (t *Tx) DeleteContainer(id string) error {
	_, err := t.tx.Exec(`DELETE FROM containers WHERE container_id = ?`, id)
	return err
}

// UpsertHandler inserts or replaces the handlers row for a protocol.
func (t *Tx) UpsertHandler(h Handler) error {
	_, err := t.tx.Exec(
		`INSERT INTO handlers (protocol, handler_template) VALUES (?, ?)
		 ON CONFLICT(protocol) DO UPDATE SET handler_template = excluded.handler_template`,
		h.Protocol, h.HandlerTemplate,
	)
	return err
}

// DeleteHandler removes the handlers row for protocol, if present.
func (t *Tx) DeleteHandler(protocol string) error {
	_, err := t.tx.Exec(`DELETE FROM handlers WHERE protocol = ?`, protocol)
	return err
}

// UpsertSearchEngine inserts or replaces a search_engines row, preserving
// its current default flag.
func (t *Tx) UpsertSearchEngine(se SearchEngine) error {
	_, err := t.tx.Exec(
		`INSERT INTO search_engines (engine_id, name, url, is_default) VALUES (?, ?, ?, 0)
		 ON CONFLICT(engine_id) DO UPDATE SET name = excluded.name, url = excluded.url`,
		se.ID, se.Name, se.URL,
	)
	return err
}

// DeleteSearchEngine removes the search_engines row for id, if present.
func (t *Tx) DeleteSearchEngine(id string) error {
	_, err := t.tx.Exec(`DELETE FROM search_engines WHERE engine_id = ?`, id)
	return err
}

// SetDefaultSearchEngine clears the default flag on every row, then sets it
// on id (§4.5: "clear default flag on all rows, then set on the named id").
func (t *Tx) SetDefaultSearchEngine(id string) error {
	if _, err := t.tx.Exec(`UPDATE search_engines SET is_default = 0`); err != nil {
		return err
	}
	_, err := t.tx.Exec(`UPDATE search_engines SET is_default = 1 WHERE engine_id = ?`, id)
	return err
}

// UpsertPref inserts or replaces a prefs row.
func (t *Tx) UpsertPref(p Pref) error {
	_, err := t.tx.Exec(
		`INSERT INTO prefs (key, value_str, value_type) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value_str = excluded.value_str, value_type = excluded.value_type`,
		p.Key, p.Value, p.Type,
	)
	return err
}

// DeletePref removes the prefs row for key, if present.
func (t *Tx) DeletePref(key string) error {
	_, err := t.tx.Exec(`DELETE FROM prefs WHERE key = ?`, key)
	return err
}

// InsertPendingTab inserts a new pending_tabs row.
func (t *Tx) InsertPendingTab(pt PendingTab) error {
	_, err := t.tx.Exec(
		`INSERT INTO pending_tabs (tab_id, url, title, from_device, sent_at) VALUES (?, ?, ?, ?, ?)`,
		pt.ID, pt.URL, pt.Title, pt.FromDevice, pt.SentAt.UnixNano(),
	)
	return err
}

// DeletePendingTab removes the pending_tabs row for id.
func (t *Tx) DeletePendingTab(id string) error {
	_, err := t.tx.Exec(`DELETE FROM pending_tabs WHERE tab_id = ?`, id)
	return err
}

// LoadClock reads the persisted vector clock.
func (t *Tx) LoadClock() (clock.Clock, error) {
	rows, err := t.tx.Query(`SELECT device_id, counter FROM vector_clock`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c := clock.New()
	for rows.Next() {
		var device string
		var counter uint64
		if err := rows.Scan(&device, &counter); err != nil {
			return nil, err
		}
		c[device] = counter
	}
	return c, rows.Err()
}

// SaveClock overwrites vector_clock atomically as a whole (§3 invariant:
// "vector_clock is overwritten atomically as a whole when persisted").
func (t *Tx) SaveClock(c clock.Clock) error {
	if _, err := t.tx.Exec(`DELETE FROM vector_clock`); err != nil {
		return err
	}
	for device, counter := range c {
		if _, err := t.tx.Exec(`INSERT INTO vector_clock (device_id, counter) VALUES (?, ?)`, device, counter); err != nil {
			return err
		}
	}
	return nil
}
