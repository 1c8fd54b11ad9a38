package eventlog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/eventlog"
	"github.com/wolfpack-dev/wolfpack/keymaterial"
)

func TestWriteThenReadDeviceRoundtrips(t *testing.T) {
	root := t.TempDir()
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	w, err := eventlog.NewWriter(root, "device-a", kp, nil, clock.New())
	require.NoError(t, err)

	path, err := w.Write([]event.Event{event.ExtensionAdded{ID: "ub@x", Name: "U"}})
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, filepath.Join(root, "device-a", "0001.evt"), path)

	r := eventlog.NewReader(root, kp, nil)
	envs, err := r.ReadDevice("device-a")
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, event.ExtensionAdded{ID: "ub@x", Name: "U"}, envs[0].Payload)
	require.Equal(t, "device-a", envs[0].Origin)
}

func TestWriteEmptyBatchFails(t *testing.T) {
	root := t.TempDir()
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	w, err := eventlog.NewWriter(root, "device-a", kp, nil, clock.New())
	require.NoError(t, err)

	_, err = w.Write(nil)
	require.ErrorIs(t, err, eventlog.ErrEmptyBatch)
}

func TestEventNumbersIncrementAndZeroPad(t *testing.T) {
	root := t.TempDir()
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	w, err := eventlog.NewWriter(root, "device-a", kp, nil, clock.New())
	require.NoError(t, err)

	first, err := w.Write([]event.Event{event.PrefRemoved{Key: "x"}})
	require.NoError(t, err)
	second, err := w.Write([]event.Event{event.PrefRemoved{Key: "y"}})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(root, "device-a", "0001.evt"), first)
	require.Equal(t, filepath.Join(root, "device-a", "0002.evt"), second)
}

func TestNextEventNumberSkipsGapsToMaxPlusOne(t *testing.T) {
	root := t.TempDir()
	deviceDir := filepath.Join(root, "device-a")
	require.NoError(t, os.MkdirAll(deviceDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(deviceDir, "0001.evt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(deviceDir, "0003.evt"), []byte("x"), 0o600))

	kp, err := keymaterial.Generate()
	require.NoError(t, err)
	w, err := eventlog.NewWriter(root, "device-a", kp, nil, clock.New())
	require.NoError(t, err)

	path, err := w.Write([]event.Event{event.PrefRemoved{Key: "z"}})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(deviceDir, "0004.evt"), path)
}

func TestTamperedFileYieldsGroupKeyMismatchAndIsSkipped(t *testing.T) {
	root := t.TempDir()
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	w, err := eventlog.NewWriter(root, "device-a", kp, nil, clock.New())
	require.NoError(t, err)
	_, err = w.Write([]event.Event{event.PrefRemoved{Key: "x"}})
	require.NoError(t, err)

	_, err = w.Write([]event.Event{event.PrefRemoved{Key: "y"}})
	require.NoError(t, err)

	tampered := filepath.Join(root, "device-a", "0001.evt")
	data, err := os.ReadFile(tampered)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(tampered, data, 0o600))

	var warnings []string
	r := eventlog.NewReader(root, kp, nil)
	r.Warn = func(path string, err error) { warnings = append(warnings, path) }

	envs, err := r.ReadDevice("device-a")
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, event.PrefRemoved{Key: "y"}, envs[0].Payload)
	require.Len(t, warnings, 1)
}

func TestReadDeviceOnMissingDirectoryIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	kp, err := keymaterial.Generate()
	require.NoError(t, err)

	r := eventlog.NewReader(root, kp, nil)
	envs, err := r.ReadDevice("nonexistent")
	require.NoError(t, err)
	require.Empty(t, envs)
}

func TestReadAllConcatenatesAcrossDevicesSortedByTimestamp(t *testing.T) {
	root := t.TempDir()
	a, err := keymaterial.Generate()
	require.NoError(t, err)
	b, err := keymaterial.Generate()
	require.NoError(t, err)

	peersOfA := []keymaterial.PairedDevice{{DeviceID: "device-b", PublicKey: b.PublicRaw()}}
	peersOfB := []keymaterial.PairedDevice{{DeviceID: "device-a", PublicKey: a.PublicRaw()}}

	wa, err := eventlog.NewWriter(root, "device-a", a, peersOfA, clock.New())
	require.NoError(t, err)
	wb, err := eventlog.NewWriter(root, "device-b", b, peersOfB, clock.New())
	require.NoError(t, err)

	_, err = wa.Write([]event.Event{event.ExtensionAdded{ID: "ub@x"}})
	require.NoError(t, err)
	_, err = wb.Write([]event.Event{event.ExtensionAdded{ID: "np@y"}})
	require.NoError(t, err)

	r := eventlog.NewReader(root, a, peersOfA)
	all, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].Timestamp.Before(all[1].Timestamp) || all[0].Timestamp.Equal(all[1].Timestamp))
}
