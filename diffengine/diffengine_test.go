package diffengine_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/diffengine"
	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

func open(t *testing.T) *stateindex.Index {
	t.Helper()
	idx, err := stateindex.Open(filepath.Join(t.TempDir(), "index.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestDiffExtensionsAddedAndRemoved(t *testing.T) {
	idx := open(t)
	require.NoError(t, idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.UpsertExtension(stateindex.Extension{ID: "stale@x", Name: "stale", AddedAt: time.Now()})
	}))

	events, err := diffengine.Diff(idx, diffengine.Observation{
		Extensions: []diffengine.ObservedExtension{{ID: "fresh@y"}},
	}, nil)
	require.NoError(t, err)

	require.Contains(t, events, event.ExtensionAdded{ID: "fresh@y"})
	require.Contains(t, events, event.ExtensionRemoved{ID: "stale@x"})
}

func TestDiffContainersNeverEmitsUpdated(t *testing.T) {
	idx := open(t)
	require.NoError(t, idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.UpsertContainer(stateindex.Container{ID: "c1", Name: "Work", Color: "blue", Icon: "briefcase"})
	}))

	events, err := diffengine.Diff(idx, diffengine.Observation{
		Containers: []diffengine.ObservedContainer{{ID: "c1"}, {ID: "c2"}},
	}, nil)
	require.NoError(t, err)

	for _, e := range events {
		require.NotEqual(t, event.ContainerUpdatedKind, e.Kind())
	}
	require.Contains(t, events, event.ContainerAdded{ID: "c2"})
}

func TestDiffHandlersEmitsSetOnlyWhenChanged(t *testing.T) {
	idx := open(t)
	require.NoError(t, idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.UpsertHandler(stateindex.Handler{Protocol: "mailto", HandlerTemplate: "https://old/%s"})
	}))

	events, err := diffengine.Diff(idx, diffengine.Observation{
		Handlers: []diffengine.ObservedHandler{{Protocol: "mailto", Template: "https://old/%s"}},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, events, "an unchanged handler must not produce an event")

	events, err = diffengine.Diff(idx, diffengine.Observation{
		Handlers: []diffengine.ObservedHandler{{Protocol: "mailto", Template: "https://new/%s"}},
	}, nil)
	require.NoError(t, err)
	require.Contains(t, events, event.HandlerSet{Protocol: "mailto", HandlerTemplate: "https://new/%s"})
}

func TestDiffPrefsRespectsWhitelist(t *testing.T) {
	idx := open(t)

	events, err := diffengine.Diff(idx, diffengine.Observation{
		Prefs: []diffengine.ObservedPref{
			{Key: "browser.startup.page", Type: event.PrefInt, Int: 1},
			{Key: "extensions.unrelated.setting", Type: event.PrefString, Str: "ignored"},
		},
	}, []string{"browser.*"})
	require.NoError(t, err)

	require.Len(t, events, 1)
	require.Equal(t, event.PrefSet{Key: "browser.startup.page", Type: event.PrefInt, IntValue: 1}, events[0])
}

func TestDiffPrefsRemovedWhenAbsentFromObservation(t *testing.T) {
	idx := open(t)
	require.NoError(t, idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.UpsertPref(stateindex.Pref{Key: "browser.startup.page", Value: "1", Type: stateindex.PrefInt})
	}))

	events, err := diffengine.Diff(idx, diffengine.Observation{}, []string{"browser.*"})
	require.NoError(t, err)
	require.Contains(t, events, event.PrefRemoved{Key: "browser.startup.page"})
}
