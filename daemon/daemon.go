// Package daemon composes the transport, pairing, and sync engine into the
// single event loop a running wolfpack device is (§4, "Daemon loop"): it
// owns the libp2p host, the Unix control socket, the profile filesystem
// watcher, and the periodic sync ticker, and it is the only place that
// holds all of them at once.
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/wolfpack-dev/wolfpack/config"
	"github.com/wolfpack-dev/wolfpack/diffengine"
	"github.com/wolfpack-dev/wolfpack/keymaterial"
	"github.com/wolfpack-dev/wolfpack/pairing"
	"github.com/wolfpack-dev/wolfpack/stateindex"
	"github.com/wolfpack-dev/wolfpack/syncengine"
	"github.com/wolfpack-dev/wolfpack/transport"
)

// Daemon is one running device: everything in §4 wired together.
type Daemon struct {
	cfg config.Config
	log *logrus.Entry

	keyPair keymaterial.KeyPair
	idx     *stateindex.Index
	engine  *syncengine.Engine
	host    *transport.Host
	pairing *pairing.Machine

	peersMu sync.Mutex
	peers   []keymaterial.PairedDevice

	listener net.Listener
}

// New wires up every subsystem for cfg, including the libp2p host (which
// starts listening and discovering peers as soon as it is created); the
// heartbeat, watcher, and control socket start only in Run.
func New(cfg config.Config, log *logrus.Entry) (*Daemon, error) {
	if cfg.Device.ID == "" {
		return nil, fmt.Errorf("daemon: device id is required")
	}
	if err := os.MkdirAll(cfg.Device.SyncRoot, 0o700); err != nil {
		return nil, fmt.Errorf("daemon: creating sync root: %w", err)
	}

	keyPath := filepath.Join(cfg.Device.SyncRoot, "device.key")
	kp, err := keymaterial.LoadOrGenerate(keyPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: loading device keypair: %w", err)
	}

	peers, err := keymaterial.LoadPairedDevices(filepath.Join(cfg.Device.SyncRoot, "keys"))
	if err != nil {
		return nil, fmt.Errorf("daemon: loading paired devices: %w", err)
	}

	dbPath := filepath.Join(cfg.Device.SyncRoot, cfg.Device.ID+".db")
	idx, err := stateindex.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: opening state index: %w", err)
	}

	engine, err := syncengine.New(syncengine.Config{
		DeviceID:      cfg.Device.ID,
		SyncRoot:      cfg.Device.SyncRoot,
		ProfileDir:    cfg.Device.ProfileDir,
		ExtensionsDir: cfg.Device.ExtensionsDirOrDefault(),
		PrefWhitelist: cfg.Device.PrefWhitelist,
		KeyPair:       kp,
		Peers:         peers,
	}, idx, log)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("daemon: building sync engine: %w", err)
	}

	d := &Daemon{
		cfg:     cfg,
		log:     log,
		keyPair: kp,
		idx:     idx,
		engine:  engine,
		pairing: pairing.New(),
		peers:   peers,
	}

	host, err := transport.New(context.Background(), transport.Config{
		ListenAddrs: cfg.Network.ListenAddrs,
		EnableMDNS:  cfg.Network.EnableMDNS,
		EnableDHT:   cfg.Network.EnableDHT,
	}, d.handleRequest, log)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("daemon: starting transport: %w", err)
	}
	d.host = host

	return d, nil
}

// eventsDir is the sync-root's events/ directory, shared by the event-log
// writer/reader the engine owns and the raw file replication the transport
// handler performs directly (§4.9).
func (d *Daemon) eventsDir() string {
	return filepath.Join(d.cfg.Device.SyncRoot, "events")
}

// Run starts the network host's heartbeat, the profile watcher, the
// periodic sync ticker, and the control socket, and blocks until ctx is
// cancelled (§5: "the daemon terminates on interrupt signal; its event
// loop exits the select").
func (d *Daemon) Run(ctx context.Context) error {
	d.host.StartHeartbeat(ctx, d.onHeartbeatClock)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("daemon: starting profile watcher: %w", err)
	}
	defer watcher.Close()
	if d.cfg.Device.ProfileDir != "" {
		if err := watcher.Add(d.cfg.Device.ProfileDir); err != nil {
			d.log.WithField("error", err).Warn("could not watch profile directory")
		}
	}

	if err := d.startControlSocket(); err != nil {
		return fmt.Errorf("daemon: starting control socket: %w", err)
	}
	defer d.stopControlSocket()

	ticker := time.NewTicker(d.cfg.Device.SyncInterval)
	defer ticker.Stop()

	d.log.WithFields(logrus.Fields{
		"device": d.cfg.Device.ID,
		"peers":  len(d.peers),
	}).Info("wolfpack daemon started")

	// Run one cycle immediately so a freshly started daemon doesn't wait a
	// full interval before its first scan.
	d.runCycle()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("wolfpack daemon shutting down")
			return nil
		case <-ticker.C:
			d.runCycle()
		case event, ok := <-watcher.Events:
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
				d.runCycle()
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				continue
			}
			d.log.WithField("error", werr).Warn("profile watcher error")
		}
	}
}

// runCycle executes one full sync() cycle (§4.8) and logs the outcome.
// Errors here are recovered: spec §7 terminates only startup errors, not
// mid-run cycle failures, which simply retry on the next tick.
func (d *Daemon) runCycle() {
	obs, err := scanProfile(d.cfg.Device.ProfileDir, d.cfg.Device.ExtensionsDirOrDefault(), d.cfg.Device.PrefWhitelist)
	if err != nil {
		d.log.WithField("error", err).Warn("scanning profile")
		obs = diffengine.Observation{}
	}

	stats, err := d.engine.Sync(obs)
	if err != nil {
		d.log.WithField("error", err).Error("sync cycle failed")
		return
	}
	d.log.WithFields(logrus.Fields{
		"applied":   stats.Applied,
		"scanned":   stats.ScannedEvents,
		"written":   stats.WrittenFile,
		"installed": len(stats.ExtensionsInstalled),
		"removed":   len(stats.ExtensionsRemoved),
	}).Debug("sync cycle complete")

	d.pushToPeers(stats)
}

// pushToPeers sends any newly written events straight to every connected
// peer, matching §4.9 step 3 ("local computes the set of envelopes... and
// pushes them") without waiting for the next heartbeat.
func (d *Daemon) pushToPeers(stats syncengine.CycleStats) {
	if stats.WrittenFile == "" {
		return
	}
	for _, p := range d.host.Peers() {
		ctx, cancel := context.WithTimeout(context.Background(), transport.RequestTimeout)
		resp, err := d.host.Request(ctx, p, transport.Request{Kind: transport.GetClockKind})
		cancel()
		if err != nil {
			d.log.WithFields(logrus.Fields{"peer": p, "error": err}).Debug("push: peer clock unreachable")
			continue
		}
		if resp.Kind != transport.ClockRespKind || resp.Clock == nil {
			continue
		}
		d.sendMissingFiles(p, resp.Clock.Clock)
	}
}

// onHeartbeatClock is StartHeartbeat's per-peer callback (§4.9 periodic
// sync): it pushes whatever the peer is missing and fetches whatever this
// device is missing.
func (d *Daemon) onHeartbeatClock(p peer.ID, resp transport.Response) {
	if resp.Kind != transport.ClockRespKind || resp.Clock == nil {
		return
	}
	d.sendMissingFiles(p, resp.Clock.Clock)
	d.pullMissingFiles(p)
}
