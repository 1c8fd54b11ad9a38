// Package syncengine orchestrates one device's sync cycle: applying
// incoming events, scanning the browser profile, emitting and writing new
// events, and applying materialized state back to profile artifacts (§4.8).
// It is the single mutating entry point other components call into; every
// method takes the engine's mutex, matching the "no reader-writer split"
// choice of §5 ("contention is low").
package syncengine

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/diffengine"
	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/eventlog"
	"github.com/wolfpack-dev/wolfpack/keymaterial"
	"github.com/wolfpack-dev/wolfpack/materialize"
	"github.com/wolfpack-dev/wolfpack/profile"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

// Config gathers everything the engine needs to own for one device.
type Config struct {
	DeviceID      string
	SyncRoot      string // holds events/ and keys/
	ProfileDir    string
	ExtensionsDir string // <ProfileDir>/extensions
	PrefWhitelist []string
	KeyPair       keymaterial.KeyPair
	Peers         []keymaterial.PairedDevice
}

// Engine is the per-device sync orchestrator.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	idx    *stateindex.Index
	writer *eventlog.Writer
	reader *eventlog.Reader
	queue  *profile.Queue
	clk    clock.Clock
	log    *logrus.Entry
}

// New constructs an engine for cfg, loading the persisted clock from idx.
func New(cfg Config, idx *stateindex.Index, log *logrus.Entry) (*Engine, error) {
	clk, err := idx.Clock()
	if err != nil {
		return nil, fmt.Errorf("syncengine: loading persisted clock: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}

	eventsDir := filepath.Join(cfg.SyncRoot, "events")
	writer, err := eventlog.NewWriter(eventsDir, cfg.DeviceID, cfg.KeyPair, cfg.Peers, clk)
	if err != nil {
		return nil, fmt.Errorf("syncengine: opening event log writer: %w", err)
	}
	reader := eventlog.NewReader(eventsDir, cfg.KeyPair, cfg.Peers)
	reader.Warn = func(path string, err error) {
		log.WithFields(logrus.Fields{"path": path, "error": err}).Warn("skipping unreadable event log file")
	}

	return &Engine{
		cfg:    cfg,
		idx:    idx,
		writer: writer,
		reader: reader,
		queue:  profile.New(),
		clk:    clk,
		log:    log,
	}, nil
}

// UpdatePeers replaces the engine's paired-device set and rebuilds the
// event-log writer and reader against it, so a pairing success (§4.10)
// takes effect on the very next write or read without restarting the
// daemon. Per §9's design note, this is the "replaced on pairing success"
// half of the atomic-pointer pattern: the snapshot passed in becomes the
// new fixed view every subsequent call sees.
func (e *Engine) UpdatePeers(peers []keymaterial.PairedDevice) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	eventsDir := filepath.Join(e.cfg.SyncRoot, "events")
	writer, err := eventlog.NewWriter(eventsDir, e.cfg.DeviceID, e.cfg.KeyPair, peers, e.clk)
	if err != nil {
		return fmt.Errorf("syncengine: rebuilding event log writer: %w", err)
	}
	reader := eventlog.NewReader(eventsDir, e.cfg.KeyPair, peers)
	reader.Warn = func(path string, err error) {
		e.log.WithFields(logrus.Fields{"path": path, "error": err}).Warn("skipping unreadable event log file")
	}

	e.cfg.Peers = peers
	e.writer = writer
	e.reader = reader
	return nil
}

// Clock returns a snapshot of the locally persisted vector clock.
func (e *Engine) Clock() clock.Clock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clk.Clone()
}

// PendingTabs returns every pending-tab row, for the control surface's
// "tabs" command.
func (e *Engine) PendingTabs() ([]stateindex.PendingTab, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx.PendingTabs()
}

// ProcessIncoming reads every event file from the log, materializes the
// envelopes, folds each envelope's clock into the locally persisted clock
// by pointwise max, and persists the result (§4.8, "process-incoming").
func (e *Engine) ProcessIncoming() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	envs, err := e.reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("syncengine: reading event log: %w", err)
	}

	var applied int
	err = withRetry(func() error {
		var applyErr error
		applied, applyErr = materialize.Apply(e.idx, envs, e.cfg.DeviceID)
		return applyErr
	})
	if err != nil {
		return 0, fmt.Errorf("syncengine: materializing: %w", err)
	}

	for _, env := range envs {
		e.clk.MergeInto(env.Clock)
	}
	if err := e.idx.WithTx(func(tx *stateindex.Tx) error { return tx.SaveClock(e.clk) }); err != nil {
		return applied, fmt.Errorf("syncengine: persisting clock: %w", err)
	}
	return applied, nil
}

// ScanProfile runs the diff engine against obs and returns the event list
// needed to bring the index up to date. It performs no writes (§4.8,
// "scan-profile").
func (e *Engine) ScanProfile(obs diffengine.Observation) ([]event.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return diffengine.Diff(e.idx, obs, e.cfg.PrefWhitelist)
}

// WriteEvents seals events into a new log file via the event-log writer
// and returns the path written (§4.8, "write-events").
func (e *Engine) WriteEvents(events []event.Event) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writer.Write(events)
}

// ApplyToProfile enqueues the currently materialized containers/handlers/
// prefs snapshots. If the browser is live, it returns without writing
// anything; otherwise it flushes the queue immediately (§4.8,
// "apply-to-profile").
func (e *Engine) ApplyToProfile() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	containers, err := e.idx.Containers()
	if err != nil {
		return nil, err
	}
	handlers, err := e.idx.Handlers()
	if err != nil {
		return nil, err
	}
	prefs, err := e.idx.Prefs()
	if err != nil {
		return nil, err
	}
	e.queue.EnqueueContainers(containers)
	e.queue.EnqueueHandlers(handlers)
	e.queue.EnqueuePrefs(prefs)

	if profile.IsBrowserLive(e.cfg.ProfileDir) {
		e.log.WithField("error", errBrowserLockHeld).Debug("deferring profile writes")
		return nil, nil
	}
	return e.queue.Flush(e.cfg.ProfileDir)
}

// FlushWriteQueue flushes any artifacts queued by a prior ApplyToProfile
// call, used once the browser releases its lock (§8 scenario 6).
func (e *Engine) FlushWriteQueue() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Flush(e.cfg.ProfileDir)
}

// SendTab writes a TabSent event for a cross-device hand-off and returns
// the event file written (§4.8, "send-tab").
func (e *Engine) SendTab(toDevice, url, title string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writer.Write([]event.Event{event.TabSent{ToDevice: toDevice, URL: url, Title: title}})
}

// AcknowledgeTab deletes the local pending-tab row and writes a
// TabReceived event referencing it (§4.8, "acknowledge-tab").
func (e *Engine) AcknowledgeTab(tabID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.idx.WithTx(func(tx *stateindex.Tx) error { return tx.DeletePendingTab(tabID) }); err != nil {
		return "", err
	}
	return e.writer.Write([]event.Event{event.TabReceived{TabID: tabID}})
}

// ReceiveTab records a tab hand-off delivered live over the peer transport's
// SendTab request (§4.9), bypassing the event log: the sending device
// already knows this device is the addressee, so there is no local
// TabSent envelope to materialize from. The row it inserts is identical in
// shape to the one the materializer would produce for a matching TabSent
// envelope (materialize.go's event.TabSent case), keeping pending_tabs
// consistent regardless of which path a hand-off arrived by.
func (e *Engine) ReceiveTab(fromDevice, url, title string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	tab := stateindex.PendingTab{
		ID:         id.String(),
		URL:        url,
		Title:      title,
		FromDevice: fromDevice,
		SentAt:     time.Now().UTC(),
	}
	if err := e.idx.WithTx(func(tx *stateindex.Tx) error { return tx.InsertPendingTab(tab) }); err != nil {
		return "", err
	}
	return tab.ID, nil
}

// ApplyRemoteEvents logs the count of remote events it is given and does
// nothing else: it does not decrypt, materialize, or fold any clock. No
// caller in this repository uses it; pushed files reach the index through
// ProcessIncoming once the daemon has stored them.
func (e *Engine) ApplyRemoteEvents(count int) {
	e.log.WithField("count", count).Info("received remote events (apply-remote-events is intent-only in this build)")
}

// CycleStats reports what each phase of a Sync call did.
type CycleStats struct {
	Applied             int
	ScannedEvents       int
	WrittenFile         string
	ArtifactsWritten    []string
	ExtensionsInstalled []string
	ExtensionsRemoved   []string
}

// Sync runs one full cycle: process-incoming → scan-profile → write-events
// → apply-to-profile → install-pending-extensions →
// remove-uninstalled-extensions, strictly in that order (§4.8, §5).
func (e *Engine) Sync(obs diffengine.Observation) (CycleStats, error) {
	var stats CycleStats

	applied, err := e.ProcessIncoming()
	if err != nil {
		return stats, err
	}
	stats.Applied = applied

	events, err := e.ScanProfile(obs)
	if err != nil {
		return stats, err
	}
	stats.ScannedEvents = len(events)

	if len(events) > 0 {
		path, err := e.WriteEvents(events)
		if err != nil {
			return stats, err
		}
		stats.WrittenFile = path
	}

	artifacts, err := e.ApplyToProfile()
	if err != nil {
		return stats, err
	}
	stats.ArtifactsWritten = artifacts

	installed, err := e.InstallPendingExtensions()
	if err != nil {
		return stats, err
	}
	stats.ExtensionsInstalled = installed

	removed, err := e.RemoveUninstalledExtensions()
	if err != nil {
		return stats, err
	}
	stats.ExtensionsRemoved = removed

	return stats, nil
}

// withRetry runs fn up to three times in all, with exponential backoff, when it
// fails with a retryable StateIndexBusy condition (§7).
func withRetry(fn func() error) error {
	backoff := 25 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = fn()
		if err == nil || !isStateIndexBusy(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}
