package stateindex

import (
	"time"

	"github.com/wolfpack-dev/wolfpack/clock"
)

// Clock returns the persisted vector clock in its own read-only transaction.
func (idx *Index) Clock() (clock.Clock, error) {
	var c clock.Clock
	err := idx.WithTx(func(t *Tx) error {
		var err error
		c, err = t.LoadClock()
		return err
	})
	return c, err
}

// ExtensionIDs returns every id currently present in the extensions table,
// for the diff engine's id-set comparison.
func (idx *Index) ExtensionIDs() (map[string]struct{}, error) {
	rows, err := idx.db.Query(`SELECT extension_id FROM extensions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ContainerIDs returns every id currently present in the containers table.
func (idx *Index) ContainerIDs() (map[string]struct{}, error) {
	rows, err := idx.db.Query(`SELECT container_id FROM containers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Containers returns every containers row.
func (idx *Index) Containers() ([]Container, error) {
	rows, err := idx.db.Query(`SELECT container_id, name, color, icon FROM containers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Container
	for rows.Next() {
		var c Container
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Handlers returns every handlers row, keyed by protocol.
func (idx *Index) Handlers() (map[string]string, error) {
	rows, err := idx.db.Query(`SELECT protocol, handler_template FROM handlers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var protocol, template string
		if err := rows.Scan(&protocol, &template); err != nil {
			return nil, err
		}
		out[protocol] = template
	}
	return out, rows.Err()
}

// Prefs returns every prefs row, keyed by key.
func (idx *Index) Prefs() (map[string]Pref, error) {
	rows, err := idx.db.Query(`SELECT key, value_str, value_type FROM prefs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Pref)
	for rows.Next() {
		var p Pref
		if err := rows.Scan(&p.Key, &p.Value, &p.Type); err != nil {
			return nil, err
		}
		out[p.Key] = p
	}
	return out, rows.Err()
}

// InstallableExtensions returns every extension id that has a package row
// but is missing fn(id) == false (caller checks the profile's extension
// directory); this just returns the joined id/version/blob set for the
// sync engine's install-pending-extensions step.
func (idx *Index) InstallableExtensions() ([]ExtensionPackage, error) {
	rows, err := idx.db.Query(`
		SELECT ep.extension_id, ep.version, ep.source_kind, ep.source_data, ep.package_blob, ep.installed_at
		FROM extension_packages ep
		JOIN extensions e ON e.extension_id = ep.extension_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExtensionPackage
	for rows.Next() {
		var p ExtensionPackage
		var installedAt int64
		if err := rows.Scan(&p.ExtensionID, &p.Version, &p.SourceKind, &p.SourceData, &p.PackageBlob, &installedAt); err != nil {
			return nil, err
		}
		p.InstalledAt = time.Unix(0, installedAt).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// OrphanedPackageIDs returns extension_packages ids that no longer have a
// matching extensions row — packages the "uninstalled but package row
// lingered" cleanup would never produce under normal operation, but the
// sync engine's remove-uninstalled-extensions step cross-checks the
// profile's extension directory (not just this table) for its real notion
// of "uninstalled" (§4.8).
func (idx *Index) OrphanedPackageIDs() (map[string]struct{}, error) {
	rows, err := idx.db.Query(`
		SELECT ep.extension_id FROM extension_packages ep
		LEFT JOIN extensions e ON e.extension_id = ep.extension_id
		WHERE e.extension_id IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// SearchEngines returns every search_engines row.
func (idx *Index) SearchEngines() ([]SearchEngine, error) {
	rows, err := idx.db.Query(`SELECT engine_id, name, url, is_default FROM search_engines`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchEngine
	for rows.Next() {
		var se SearchEngine
		var isDefault int
		if err := rows.Scan(&se.ID, &se.Name, &se.URL, &isDefault); err != nil {
			return nil, err
		}
		se.Default = isDefault != 0
		out = append(out, se)
	}
	return out, rows.Err()
}

// PendingTabs returns every pending_tabs row.
func (idx *Index) PendingTabs() ([]PendingTab, error) {
	rows, err := idx.db.Query(`SELECT tab_id, url, title, from_device, sent_at FROM pending_tabs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingTab
	for rows.Next() {
		var pt PendingTab
		var sentAt int64
		if err := rows.Scan(&pt.ID, &pt.URL, &pt.Title, &pt.FromDevice, &sentAt); err != nil {
			return nil, err
		}
		pt.SentAt = time.Unix(0, sentAt).UTC()
		out = append(out, pt)
	}
	return out, rows.Err()
}
