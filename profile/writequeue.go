// Package profile holds the write-deferral machinery of §4.7: while the
// browser holds its profile lock, the core never touches profile files
// directly. Queued snapshots accumulate and flush once the lock clears.
//
// The actual profile directory layout (XPI packaging, profiles.ini,
// mozLz4-compressed prefs) is the excluded browser-integration collaborator
// (spec §1); this package only owns the artifacts the core itself is
// responsible for producing: containers.json, handlers.json, and the
// user.js preference overrides block.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wolfpack-dev/wolfpack/stateindex"
)

// ArtifactKind identifies one of the three snapshot kinds the write queue
// defers (§4.7: "containers-snapshot, handlers-snapshot, prefs-snapshot").
type ArtifactKind int

const (
	ContainersSnapshot ArtifactKind = iota + 1
	HandlersSnapshot
	PrefsSnapshot
)

// Filename is the artifact this kind is written as under the profile
// directory (§8 scenario 6: "containers.json", "user.js").
func (k ArtifactKind) Filename() string {
	switch k {
	case ContainersSnapshot:
		return "containers.json"
	case HandlersSnapshot:
		return "handlers.json"
	case PrefsSnapshot:
		return "user.js"
	default:
		return ""
	}
}

// LockFilename is the sentinel whose presence under a profile directory
// means the browser currently holds it (§4.7: "'Live' is detected by the
// existence of a lock sentinel file").
const LockFilename = "lock"

// IsBrowserLive reports whether profileDir's lock sentinel exists.
func IsBrowserLive(profileDir string) bool {
	_, err := os.Stat(filepath.Join(profileDir, LockFilename))
	return err == nil
}

// snapshot holds one queued write's payload, opaque to the Queue itself.
type snapshot struct {
	containers []stateindex.Container
	handlers   map[string]string
	prefs      map[string]stateindex.Pref
}

// Queue defers profile writes while the browser is live. At most one queued
// item exists per kind; re-enqueueing a kind replaces the prior payload but
// preserves its position in flush order (§4.7: "enqueueing replaces any
// earlier queued item of the same kind. Insertion order determines flush
// order across kinds").
type Queue struct {
	order   []ArtifactKind
	pending map[ArtifactKind]snapshot
}

// New returns an empty write queue.
func New() *Queue {
	return &Queue{pending: make(map[ArtifactKind]snapshot)}
}

// EnqueueContainers replaces any queued containers-snapshot with containers.
// An empty slice enqueues nothing, matching original_source's
// queue_profile_writes(): a kind with no backing data never produces an
// artifact (§8 scenario 6).
func (q *Queue) EnqueueContainers(containers []stateindex.Container) {
	if len(containers) == 0 {
		return
	}
	q.enqueue(ContainersSnapshot, snapshot{containers: containers})
}

// EnqueueHandlers replaces any queued handlers-snapshot with handlers. An
// empty map enqueues nothing (§8 scenario 6).
func (q *Queue) EnqueueHandlers(handlers map[string]string) {
	if len(handlers) == 0 {
		return
	}
	q.enqueue(HandlersSnapshot, snapshot{handlers: handlers})
}

// EnqueuePrefs replaces any queued prefs-snapshot with prefs. An empty map
// enqueues nothing (§8 scenario 6).
func (q *Queue) EnqueuePrefs(prefs map[string]stateindex.Pref) {
	if len(prefs) == 0 {
		return
	}
	q.enqueue(PrefsSnapshot, snapshot{prefs: prefs})
}

func (q *Queue) enqueue(kind ArtifactKind, s snapshot) {
	if _, exists := q.pending[kind]; !exists {
		q.order = append(q.order, kind)
	}
	q.pending[kind] = s
}

// Len reports how many distinct artifact kinds are currently queued.
func (q *Queue) Len() int {
	return len(q.order)
}

// Flush writes every queued snapshot to profileDir in insertion order and
// drains the queue, returning the artifact filenames written. On the first
// write failure, the remaining queue is left intact and the error is
// returned (§4.7: "Any failure leaves the remaining queue intact and
// surfaces the error").
func (q *Queue) Flush(profileDir string) ([]string, error) {
	var written []string
	for i, kind := range q.order {
		s := q.pending[kind]
		if err := writeArtifact(profileDir, kind, s); err != nil {
			q.order = q.order[i:]
			return written, fmt.Errorf("profile: writing %s: %w", kind.Filename(), err)
		}
		written = append(written, kind.Filename())
		delete(q.pending, kind)
	}
	q.order = nil
	return written, nil
}

func writeArtifact(profileDir string, kind ArtifactKind, s snapshot) error {
	path := filepath.Join(profileDir, kind.Filename())
	switch kind {
	case ContainersSnapshot:
		return writeContainersJSON(path, s.containers)
	case HandlersSnapshot:
		return writeHandlersJSON(path, s.handlers)
	case PrefsSnapshot:
		return writePrefsJS(path, s.prefs)
	default:
		return fmt.Errorf("profile: unknown artifact kind %d", kind)
	}
}

func writeContainersJSON(path string, containers []stateindex.Container) error {
	sorted := append([]stateindex.Container(nil), containers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeHandlersJSON(path string, handlers map[string]string) error {
	data, err := json.MarshalIndent(handlers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writePrefsJS renders prefs as Firefox's user.js override format, one
// user_pref("key", value); line per entry, sorted by key for a stable diff.
func writePrefsJS(path string, prefs map[string]stateindex.Pref) error {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		p := prefs[k]
		buf = append(buf, []byte(fmt.Sprintf("user_pref(%q, %s);\n", k, prefLiteral(p)))...)
	}
	return os.WriteFile(path, buf, 0o644)
}

func prefLiteral(p stateindex.Pref) string {
	switch p.Type {
	case stateindex.PrefString:
		return fmt.Sprintf("%q", p.Value)
	default:
		return p.Value // bool/int already render as bare literals ("true"/"false"/digits)
	}
}
