// Package transport carries sealed event-log envelopes and tab hand-offs
// between paired devices over a libp2p mesh: mDNS for same-LAN discovery,
// an optional Kademlia DHT for WAN discovery, and a single request/response
// protocol for everything else (§4.9). It never sees plaintext — every
// PushEvents/Events payload is the already-sealed bytes eventlog produces,
// and checking that a sender's public key is a paired device is left to
// the request handler the daemon installs.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/sirupsen/logrus"
)

// ProtocolID is the libp2p stream protocol every sync exchange runs over.
const ProtocolID = "/wolfpack/sync/1.0.0"

// RequestTimeout bounds how long a single Request/Response round trip may
// take before the caller gives up (§4.9: "requests time out after 30 seconds").
const RequestTimeout = 30 * time.Second

// HeartbeatInterval is how often the host polls each connected peer with a
// GetClock request to discover new events without waiting on a push (§4.9:
// "devices also poll every connected peer every 30 seconds").
const HeartbeatInterval = 30 * time.Second

const mdnsServiceTag = "wolfpack-sync"

// Config configures a Host.
type Config struct {
	ListenAddrs []string
	EnableMDNS  bool
	EnableDHT   bool
}

// DefaultConfig matches the acorde-style sensible-local-defaults pattern:
// listen on a random TCP port, discover peers over mDNS, skip the DHT.
func DefaultConfig() Config {
	return Config{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/0"},
		EnableMDNS:  true,
	}
}

// Host wraps a libp2p host with the sync protocol wired in.
type Host struct {
	h    host.Host
	dht  *dht.IpfsDHT
	mdns mdns.Service
	log  *logrus.Entry

	handler RequestHandler

	cancelHeartbeat context.CancelFunc
}

// RequestHandler answers an inbound Request from a peer.
type RequestHandler func(from peer.ID, req Request) Response

// New creates and starts a libp2p host under cfg, wiring handler as the
// protocol's inbound request handler.
func New(ctx context.Context, cfg Config, handler RequestHandler, log *logrus.Entry) (*Host, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	if err != nil {
		return nil, fmt.Errorf("transport: creating libp2p host: %w", err)
	}

	t := &Host{h: h, log: log, handler: handler}
	h.SetStreamHandler(ProtocolID, t.handleStream)

	if cfg.EnableMDNS {
		t.mdns = mdns.NewMdnsService(h, mdnsServiceTag, &discoveryNotifee{host: h, log: log})
		if err := t.mdns.Start(); err != nil {
			h.Close()
			return nil, fmt.Errorf("transport: starting mdns: %w", err)
		}
	}

	if cfg.EnableDHT {
		kad, err := dht.New(ctx, h)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("transport: creating dht: %w", err)
		}
		if err := kad.Bootstrap(ctx); err != nil {
			h.Close()
			return nil, fmt.Errorf("transport: bootstrapping dht: %w", err)
		}
		t.dht = kad
	}

	return t, nil
}

// ID returns this host's peer ID.
func (t *Host) ID() peer.ID { return t.h.ID() }

// Addrs returns the multiaddrs this host is listening on.
func (t *Host) Addrs() []string {
	var out []string
	for _, a := range t.h.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, t.h.ID()))
	}
	return out
}

// Peers returns every peer this host currently holds a connection to.
func (t *Host) Peers() []peer.ID {
	return t.h.Network().Peers()
}

// Connect dials peerAddr (a full multiaddr including /p2p/<id>) and adds it
// to the peerstore, reaching a peer directly instead of waiting on
// discovery. Nothing in the daemon calls it.
func (t *Host) Connect(ctx context.Context, peerAddr string) (peer.ID, error) {
	info, err := peer.AddrInfoFromString(peerAddr)
	if err != nil {
		return "", fmt.Errorf("transport: parsing peer address: %w", err)
	}
	if err := t.h.Connect(ctx, *info); err != nil {
		return "", fmt.Errorf("transport: connecting to %s: %w", info.ID, err)
	}
	return info.ID, nil
}

// StartHeartbeat launches a goroutine that sends GetClock to every connected
// peer on HeartbeatInterval until ctx is done, passing each reply to onClock.
func (t *Host) StartHeartbeat(ctx context.Context, onClock func(peer.ID, Response)) {
	hbCtx, cancel := context.WithCancel(ctx)
	t.cancelHeartbeat = cancel

	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				for _, p := range t.Peers() {
					resp, err := t.Request(hbCtx, p, Request{Kind: GetClockKind})
					if err != nil {
						t.log.WithFields(logrus.Fields{"peer": p, "error": err}).Debug("heartbeat request failed")
						continue
					}
					onClock(p, resp)
				}
			}
		}
	}()
}

// Close shuts down discovery services, the DHT, and the host itself.
func (t *Host) Close() error {
	if t.cancelHeartbeat != nil {
		t.cancelHeartbeat()
	}
	if t.mdns != nil {
		t.mdns.Close()
	}
	if t.dht != nil {
		t.dht.Close()
	}
	return t.h.Close()
}

type discoveryNotifee struct {
	host host.Host
	log  *logrus.Entry
}

// HandlePeerFound satisfies mdns.Notifee: a peer discovered on the LAN is
// connected immediately, matching the teacher pack's acorde reference
// (internal/sync/sync.go's mDNS wiring connects on discovery rather than
// waiting for an explicit dial).
func (n *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.host.Connect(ctx, pi); err != nil {
		n.log.WithFields(logrus.Fields{"peer": pi.ID, "error": err}).Debug("mdns-discovered peer connect failed")
	}
}
