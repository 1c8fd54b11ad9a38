package materialize_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/materialize"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

func open(t *testing.T) *stateindex.Index {
	t.Helper()
	idx, err := stateindex.Open(filepath.Join(t.TempDir(), "index.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func envelope(t *testing.T, origin string, payload event.Event) event.Envelope {
	t.Helper()
	env, err := event.NewEnvelope(origin, clock.New(), payload)
	require.NoError(t, err)
	return env
}

func TestApplyingTheSameEnvelopeTwiceIsIdempotent(t *testing.T) {
	idx := open(t)
	env := envelope(t, "device-a", event.ExtensionAdded{ID: "ub@x", Name: "U"})

	applied, err := materialize.Apply(idx, []event.Envelope{env}, "device-a")
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	applied, err = materialize.Apply(idx, []event.Envelope{env}, "device-a")
	require.NoError(t, err)
	require.Equal(t, 0, applied, "re-applying an already-seen envelope must be a no-op")

	ids, err := idx.ExtensionIDs()
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestExtensionInstallWritesBothTables(t *testing.T) {
	idx := open(t)
	env := envelope(t, "device-a", event.ExtensionInstalled{
		ID:             "ub@x",
		Version:        "1.0",
		Source:         event.PackageSource{Kind: "amo", Data: "https://addons.mozilla.org/ub"},
		PackageBlobB64: "ZmFrZS14cGk=",
	})

	_, err := materialize.Apply(idx, []event.Envelope{env}, "device-a")
	require.NoError(t, err)

	ids, err := idx.ExtensionIDs()
	require.NoError(t, err)
	require.Contains(t, ids, "ub@x")

	pkgs, err := idx.InstallableExtensions()
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	require.Equal(t, "1.0", pkgs[0].Version)
}

func TestExtensionUninstallRemovesBothTables(t *testing.T) {
	idx := open(t)
	install := envelope(t, "device-a", event.ExtensionInstalled{ID: "ub@x", Version: "1.0", PackageBlobB64: "eA=="})
	uninstall := envelope(t, "device-a", event.ExtensionUninstalled{ID: "ub@x"})

	_, err := materialize.Apply(idx, []event.Envelope{install, uninstall}, "device-a")
	require.NoError(t, err)

	ids, err := idx.ExtensionIDs()
	require.NoError(t, err)
	require.NotContains(t, ids, "ub@x")

	pkgs, err := idx.InstallableExtensions()
	require.NoError(t, err)
	require.Empty(t, pkgs)
}

func TestContainerUpdatedRequiresAllThreeFields(t *testing.T) {
	idx := open(t)
	add := envelope(t, "device-a", event.ContainerAdded{ID: "c1", Name: "Work", Color: "blue", Icon: "briefcase"})

	name := "Personal"
	partial := envelope(t, "device-a", event.ContainerUpdated{ID: "c1", Name: &name})

	_, err := materialize.Apply(idx, []event.Envelope{add, partial}, "device-a")
	require.NoError(t, err)

	ids, err := idx.ContainerIDs()
	require.NoError(t, err)
	require.Contains(t, ids, "c1")
	// The partial update must not have changed anything: confirm the prior
	// name survived, then apply a fully-populated ContainerUpdated and
	// confirm that one takes effect.
	containers, err := idx.Containers()
	require.NoError(t, err)
	require.Len(t, containers, 1)
	require.Equal(t, "Work", containers[0].Name)

	color := "red"
	icon := "fox"
	full := envelope(t, "device-a", event.ContainerUpdated{ID: "c1", Name: &name, Color: &color, Icon: &icon})
	_, err = materialize.Apply(idx, []event.Envelope{full}, "device-a")
	require.NoError(t, err)

	containers, err = idx.Containers()
	require.NoError(t, err)
	require.Len(t, containers, 1)
	require.Equal(t, name, containers[0].Name)
}

func TestSearchEngineDefaultClearsPriorDefault(t *testing.T) {
	idx := open(t)
	a := envelope(t, "device-a", event.SearchEngineAdded{ID: "a", Name: "A", URL: "https://a"})
	b := envelope(t, "device-a", event.SearchEngineAdded{ID: "b", Name: "B", URL: "https://b"})
	defA := envelope(t, "device-a", event.SearchEngineDefault{ID: "a"})
	defB := envelope(t, "device-a", event.SearchEngineDefault{ID: "b"})

	_, err := materialize.Apply(idx, []event.Envelope{a, b, defA, defB}, "device-a")
	require.NoError(t, err)

	engines, err := idx.SearchEngines()
	require.NoError(t, err)
	defaults := 0
	for _, e := range engines {
		if e.Default {
			defaults++
			require.Equal(t, "b", e.ID)
		}
	}
	require.Equal(t, 1, defaults)
}

func TestTabSentOnlyInsertedForTargetDevice(t *testing.T) {
	idx := open(t)
	toOther := envelope(t, "device-a", event.TabSent{ToDevice: "device-b", URL: "https://example.com"})

	_, err := materialize.Apply(idx, []event.Envelope{toOther}, "device-a")
	require.NoError(t, err)

	tabs, err := idx.PendingTabs()
	require.NoError(t, err)
	require.Empty(t, tabs, "a TabSent envelope materialized on a device that isn't the target must not create a pending tab")
}

func TestTabReceivedDeletesPendingTab(t *testing.T) {
	idx := open(t)
	sent := envelope(t, "device-b", event.TabSent{ToDevice: "device-a", URL: "https://example.com"})

	_, err := materialize.Apply(idx, []event.Envelope{sent}, "device-a")
	require.NoError(t, err)

	tabs, err := idx.PendingTabs()
	require.NoError(t, err)
	require.Len(t, tabs, 1)

	received := envelope(t, "device-a", event.TabReceived{TabID: sent.ID.String()})
	_, err = materialize.Apply(idx, []event.Envelope{received}, "device-a")
	require.NoError(t, err)

	tabs, err = idx.PendingTabs()
	require.NoError(t, err)
	require.Empty(t, tabs)
}

func TestApplyOrderIndependentForDisjointEntities(t *testing.T) {
	ext := envelope(t, "device-a", event.ExtensionAdded{ID: "ub@x", Name: "U"})
	container := envelope(t, "device-b", event.ContainerAdded{ID: "c1", Name: "Work", Color: "blue", Icon: "briefcase"})

	forward, err := stateindex.Open(filepath.Join(t.TempDir(), "forward.sqlite3"))
	require.NoError(t, err)
	defer forward.Close()
	_, err = materialize.Apply(forward, []event.Envelope{ext, container}, "device-a")
	require.NoError(t, err)

	reverse, err := stateindex.Open(filepath.Join(t.TempDir(), "reverse.sqlite3"))
	require.NoError(t, err)
	defer reverse.Close()
	_, err = materialize.Apply(reverse, []event.Envelope{container, ext}, "device-a")
	require.NoError(t, err)

	fwdExt, err := forward.ExtensionIDs()
	require.NoError(t, err)
	revExt, err := reverse.ExtensionIDs()
	require.NoError(t, err)
	require.Equal(t, fwdExt, revExt)

	fwdC, err := forward.ContainerIDs()
	require.NoError(t, err)
	revC, err := reverse.ContainerIDs()
	require.NoError(t, err)
	require.Equal(t, fwdC, revC)
}
