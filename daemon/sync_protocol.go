package daemon

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/eventlog"
	"github.com/wolfpack-dev/wolfpack/transport"
)

// handleRequest answers one inbound /wolfpack/sync/1.0.0 request (§4.9).
// A response is always produced, even on failure, per the protocol's
// "a response must always be sent" rule.
func (d *Daemon) handleRequest(from peer.ID, req transport.Request) transport.Response {
	switch req.Kind {
	case transport.GetClockKind:
		return transport.Response{Kind: transport.ClockRespKind, Clock: &transport.ClockResp{Clock: d.engine.Clock()}}

	case transport.GetEventsKind:
		if req.GetEvents == nil {
			return transport.ErrorResponse("missing GetEvents payload")
		}
		envs, err := d.loadEnvelopesSince(req.GetEvents.Clock)
		if err != nil {
			return transport.ErrorResponse(err.Error())
		}
		return transport.Response{Kind: transport.EventsRespKind, Events: &transport.EventsResp{Envelopes: envs}}

	case transport.PushEventsKind:
		if req.PushEvents == nil {
			return transport.ErrorResponse("missing PushEvents payload")
		}
		count, err := d.acceptPushedEnvelopes(req.PushEvents.Envelopes)
		if err != nil {
			return transport.ErrorResponse(err.Error())
		}
		return transport.Response{Kind: transport.AckRespKind, Ack: &transport.AckResp{Count: uint64(count)}}

	case transport.SendTabKind:
		if req.SendTab == nil {
			return transport.ErrorResponse("missing SendTab payload")
		}
		tabID, err := d.engine.ReceiveTab(req.SendTab.FromDevice, req.SendTab.URL, req.SendTab.Title)
		if err != nil {
			return transport.ErrorResponse(err.Error())
		}
		return transport.Response{Kind: transport.TabReceivedRespKind, TabReceived: &transport.TabReceivedResp{TabID: tabID}}

	default:
		return transport.ErrorResponse("unknown request kind")
	}
}

// loadEnvelopesSince answers GetEvents: every sealed file this device holds
// (its own or another peer's, already synced in) whose origin device's
// counter exceeds theirClock's recorded value (§4.9).
func (d *Daemon) loadEnvelopesSince(theirClock clock.Clock) ([]transport.EncryptedEnvelope, error) {
	refs, err := eventlog.MissingSince(d.eventsDir(), theirClock)
	if err != nil {
		return nil, fmt.Errorf("daemon: listing missing files: %w", err)
	}

	out := make([]transport.EncryptedEnvelope, 0, len(refs))
	for _, ref := range refs {
		data, err := eventlog.ReadRaw(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("daemon: reading %s: %w", ref.Path, err)
		}
		sender, err := eventlog.SenderKeyOf(data)
		if err != nil {
			d.log.WithFields(logrus.Fields{"path": ref.Path, "error": err}).Warn("skipping corrupt log file in GetEvents reply")
			continue
		}
		out = append(out, transport.EncryptedEnvelope{
			ID:         fmt.Sprintf("%s/%04d", ref.DeviceID, ref.Number),
			DeviceID:   ref.DeviceID,
			Counter:    uint64(ref.Number),
			Ciphertext: data,
			PublicKey:  sender[:],
		})
	}
	return out, nil
}

// acceptPushedEnvelopes is PushEvents' inbound counterpart: it verifies
// each envelope's claimed origin is a paired device (§4.9: "Recipients
// MUST verify that the origin device is in the paired-device set before
// decrypting; unknown-origin events are discarded"), writes unseen ones to
// disk, and runs ProcessIncoming so they materialize immediately.
func (d *Daemon) acceptPushedEnvelopes(envs []transport.EncryptedEnvelope) (int, error) {
	accepted := 0
	for _, env := range envs {
		if !d.isPairedDevice(env.DeviceID, env.PublicKey) {
			d.log.WithField("device", env.DeviceID).Warn("discarding envelope from unpaired origin")
			continue
		}
		if err := eventlog.WriteRaw(d.eventsDir(), env.DeviceID, int(env.Counter), env.Ciphertext); err != nil {
			return accepted, fmt.Errorf("daemon: storing pushed file: %w", err)
		}
		accepted++
	}
	if accepted > 0 {
		if _, err := d.engine.ProcessIncoming(); err != nil {
			return accepted, fmt.Errorf("daemon: materializing pushed events: %w", err)
		}
	}
	return accepted, nil
}

func (d *Daemon) isPairedDevice(deviceID string, publicKey []byte) bool {
	if deviceID == d.cfg.Device.ID {
		return true
	}
	d.peersMu.Lock()
	defer d.peersMu.Unlock()
	for _, p := range d.peers {
		if p.DeviceID != deviceID {
			continue
		}
		if len(publicKey) < 32 {
			return false
		}
		return string(p.PublicKey[:]) == string(publicKey[len(publicKey)-32:])
	}
	return false
}

// sendMissingFiles pushes every file this device holds that theirClock
// doesn't yet reflect to peer p (§4.9 step 3).
func (d *Daemon) sendMissingFiles(p peer.ID, theirClock clock.Clock) {
	envs, err := d.loadEnvelopesSince(theirClock)
	if err != nil {
		d.log.WithField("error", err).Warn("listing envelopes to push")
		return
	}
	if len(envs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), transport.RequestTimeout)
	defer cancel()
	if _, err := d.host.Request(ctx, p, transport.Request{Kind: transport.PushEventsKind, PushEvents: &transport.PushEvents{Envelopes: envs}}); err != nil {
		d.log.WithFields(logrus.Fields{"peer": p, "error": err}).Debug("pushing events failed")
	}
}

// pullMissingFiles asks peer p for everything this device is missing
// (§4.9 step 4) and applies whatever comes back.
func (d *Daemon) pullMissingFiles(p peer.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), transport.RequestTimeout)
	defer cancel()
	resp, err := d.host.Request(ctx, p, transport.Request{Kind: transport.GetEventsKind, GetEvents: &transport.GetEvents{Clock: d.engine.Clock()}})
	if err != nil {
		d.log.WithFields(logrus.Fields{"peer": p, "error": err}).Debug("pulling events failed")
		return
	}
	if resp.Kind != transport.EventsRespKind || resp.Events == nil || len(resp.Events.Envelopes) == 0 {
		return
	}
	if _, err := d.acceptPushedEnvelopes(resp.Events.Envelopes); err != nil {
		d.log.WithField("error", err).Warn("applying pulled events")
	}
}
