package daemon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/wolfpack-dev/wolfpack/keymaterial"
	"github.com/wolfpack-dev/wolfpack/pairing"
)

// startControlSocket opens the Unix-domain control socket and begins
// accepting connections in a background goroutine (§6: "an OS-local stream
// socket... accepting newline-delimited commands").
func (d *Daemon) startControlSocket() error {
	path := d.cfg.Control.SocketPath
	os.Remove(path) // stale socket from an unclean shutdown

	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	d.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return // listener closed
			}
			go d.serveControlConn(conn)
		}
	}()
	return nil
}

// stopControlSocket closes the listener and removes the socket file, the
// daemon event loop's cleanup path (§5).
func (d *Daemon) stopControlSocket() {
	if d.listener != nil {
		d.listener.Close()
	}
	os.Remove(d.cfg.Control.SocketPath)
}

func (d *Daemon) serveControlConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := d.dispatchCommand(line)
		fmt.Fprintln(conn, reply)
	}
}

// dispatchCommand runs one control-socket command and formats the single
// "OK: ..." / "ERROR: ..." reply line (§6).
func (d *Daemon) dispatchCommand(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERROR: empty command"
	}

	switch fields[0] {
	case "status":
		return d.cmdStatus()
	case "peers":
		return d.cmdPeers()
	case "tabs":
		return d.cmdTabs()
	case "send":
		return d.cmdSend(fields[1:])
	case "open":
		return d.cmdOpen(fields[1:])
	case "pair-create":
		return d.cmdPairCreate()
	case "pair-join":
		return d.cmdPairJoin(fields[1:])
	default:
		return fmt.Sprintf("ERROR: unknown command %q", fields[0])
	}
}

func (d *Daemon) cmdStatus() string {
	clk := d.engine.Clock()
	code, active := d.pairing.CurrentCode()
	pairingStatus := "idle"
	if active {
		pairingStatus = fmt.Sprintf("awaiting-joiner code=%s", code)
	}
	return fmt.Sprintf("OK: device=%s clock=%v peers=%d pairing=%s", d.cfg.Device.ID, clk, len(d.peers), pairingStatus)
}

func (d *Daemon) cmdPeers() string {
	var names []string
	for _, p := range d.peers {
		names = append(names, p.DeviceID)
	}
	return fmt.Sprintf("OK: %s", strings.Join(names, ","))
}

func (d *Daemon) cmdTabs() string {
	tabs, err := d.engine.PendingTabs()
	if err != nil {
		return fmt.Sprintf("ERROR: %s", err)
	}
	var parts []string
	for _, t := range tabs {
		parts = append(parts, fmt.Sprintf("%s|%s|%s", t.ID, t.URL, t.Title))
	}
	return fmt.Sprintf("OK: %s", strings.Join(parts, ";"))
}

func (d *Daemon) cmdSend(args []string) string {
	if len(args) < 2 {
		return "ERROR: usage: send <device> <url> [title...]"
	}
	toDevice, url := args[0], args[1]
	title := strings.Join(args[2:], " ")
	path, err := d.engine.SendTab(toDevice, url, title)
	if err != nil {
		return fmt.Sprintf("ERROR: %s", err)
	}
	return fmt.Sprintf("OK: %s", path)
}

func (d *Daemon) cmdOpen(args []string) string {
	if len(args) != 1 {
		return "ERROR: usage: open <tab-id>"
	}
	path, err := d.engine.AcknowledgeTab(args[0])
	if err != nil {
		return fmt.Sprintf("ERROR: %s", err)
	}
	return fmt.Sprintf("OK: %s", path)
}

func (d *Daemon) cmdPairCreate() string {
	code, err := d.pairing.CreateSession()
	if err != nil {
		return fmt.Sprintf("ERROR: %s", err)
	}
	return fmt.Sprintf("OK: %s", code)
}

// cmdPairJoin drives the joiner side of a same-socket pairing exchange:
// the operator reads the six-digit code off the initiator's screen and
// types it into the joining device's own control socket (§4.10's network
// exchange is otherwise an open question per DESIGN.md; this
// covers the local-operator hand-off path that needs no transport wiring
// at all).
func (d *Daemon) cmdPairJoin(args []string) string {
	if len(args) != 1 {
		return "ERROR: usage: pair-join <code>"
	}
	req := pairing.Request{DeviceID: d.cfg.Device.ID, PublicKey: d.keyPair.PublicRaw()}
	result := <-d.pairing.JoinSession(args[0], req)
	switch result.Reply {
	case pairing.Accepted:
		if err := d.commitPairing(result.Response); err != nil {
			return fmt.Sprintf("ERROR: %s", err)
		}
		return fmt.Sprintf("OK: paired with %s", result.Response.DeviceID)
	case pairing.Expired:
		return "ERROR: pairing code expired"
	default:
		return "ERROR: invalid pairing code"
	}
}

// commitPairing persists a newly accepted pairing result's peer set to
// disk and folds it into the engine's live paired-device set (§9,
// "Ownership of the paired-device set": readers clone the current
// snapshot, and a pairing success replaces it wholesale).
func (d *Daemon) commitPairing(resp pairing.Response) error {
	keysDir := d.cfg.Device.SyncRoot + "/keys"

	newPeer := keymaterial.PairedDevice{DeviceID: resp.DeviceID, PublicKey: resp.PublicKey}
	if err := keymaterial.SavePairedDevice(keysDir, newPeer.DeviceID, newPeer.PublicKey); err != nil {
		return err
	}
	for _, p := range resp.Peers {
		if err := keymaterial.SavePairedDevice(keysDir, p.DeviceID, p.PublicKey); err != nil {
			return err
		}
	}

	d.peersMu.Lock()
	d.peers = append(append([]keymaterial.PairedDevice{}, d.peers...), resp.Peers...)
	d.peers = append(d.peers, newPeer)
	snapshot := append([]keymaterial.PairedDevice{}, d.peers...)
	d.peersMu.Unlock()

	if err := d.engine.UpdatePeers(snapshot); err != nil {
		return fmt.Errorf("daemon: updating engine peer set: %w", err)
	}

	d.log.WithField("device", resp.DeviceID).Info("pairing accepted")
	return nil
}

// Shutdown stops the control socket, closes the transport host, and
// releases the state index handle.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.stopControlSocket()
	hostErr := d.host.Close()
	idxErr := d.idx.Close()
	if hostErr != nil {
		return hostErr
	}
	return idxErr
}
