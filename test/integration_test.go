package test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/wolfpack-dev/wolfpack/config"
	"github.com/wolfpack-dev/wolfpack/daemon"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// TestDaemonNewWiresEverySubsystem builds a full Daemon the way wolfpackd's
// launcher does — config, device keypair, state index, sync engine, and
// transport host all assembled from one config.Config — and checks it can
// be torn down cleanly without ever calling Run. This is the closest
// equivalent to the teacher's preset-assembly tests: it exercises the whole
// startup path rather than one package in isolation.
func TestDaemonNewWiresEverySubsystem(t *testing.T) {
	root := t.TempDir()

	cfg := config.Default()
	cfg.Device.ID = "integration-device"
	cfg.Device.SyncRoot = root
	cfg.Device.ProfileDir = filepath.Join(root, "profile")
	cfg.Network.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.Network.EnableMDNS = false
	cfg.Control.SocketPath = filepath.Join(root, "wolfpackd.sock")

	d, err := daemon.New(cfg, discardLog())
	require.NoError(t, err)
	require.NotNil(t, d)

	require.NoError(t, d.Shutdown(context.Background()))
}

// TestDaemonNewRejectsMissingDeviceID checks the one startup invariant
// daemon.New enforces itself before touching the filesystem or network.
func TestDaemonNewRejectsMissingDeviceID(t *testing.T) {
	cfg := config.Default()
	cfg.Device.ID = ""
	cfg.Device.SyncRoot = t.TempDir()

	_, err := daemon.New(cfg, discardLog())
	require.Error(t, err)
}

// TestConfigAndFlagsRoundTrip checks that the CLI flag groups wolfpackd
// registers produce a config.Config usable to build a real Daemon, tying
// the flags and daemon packages together the way the launcher does.
func TestConfigAndFlagsRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := runConfigFromArgs(t, []string{
		"--sync-root", root,
		"--device", "cli-device",
		"--profile-dir", filepath.Join(root, "profile"),
		"--listen", "/ip4/127.0.0.1/tcp/0",
	})
	cfg.Network.EnableMDNS = false
	cfg.Control.SocketPath = filepath.Join(root, "wolfpackd.sock")

	d, err := daemon.New(cfg, discardLog())
	require.NoError(t, err)
	require.NoError(t, d.Shutdown(context.Background()))
}
