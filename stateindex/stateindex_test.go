package stateindex_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

func open(t *testing.T) *stateindex.Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.sqlite3")
	idx, err := stateindex.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestAppliedEventsGuardsAgainstDoubleApply(t *testing.T) {
	idx := open(t)

	err := idx.WithTx(func(tx *stateindex.Tx) error {
		applied, err := tx.HasApplied("ev-1")
		require.NoError(t, err)
		require.False(t, applied)
		return tx.MarkApplied("ev-1", "device-a", time.Now().UTC())
	})
	require.NoError(t, err)

	err = idx.WithTx(func(tx *stateindex.Tx) error {
		applied, err := tx.HasApplied("ev-1")
		require.NoError(t, err)
		require.True(t, applied)
		return nil
	})
	require.NoError(t, err)
}

func TestExtensionUpsertAndDelete(t *testing.T) {
	idx := open(t)

	err := idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.UpsertExtension(stateindex.Extension{ID: "ub@x", Name: "U", AddedAt: time.Now()})
	})
	require.NoError(t, err)

	ids, err := idx.ExtensionIDs()
	require.NoError(t, err)
	require.Contains(t, ids, "ub@x")

	err = idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.DeleteExtension("ub@x")
	})
	require.NoError(t, err)

	ids, err = idx.ExtensionIDs()
	require.NoError(t, err)
	require.NotContains(t, ids, "ub@x")
}

func TestOnlyOneSearchEngineDefaultAtATime(t *testing.T) {
	idx := open(t)

	err := idx.WithTx(func(tx *stateindex.Tx) error {
		if err := tx.UpsertSearchEngine(stateindex.SearchEngine{ID: "a", Name: "A", URL: "https://a"}); err != nil {
			return err
		}
		if err := tx.UpsertSearchEngine(stateindex.SearchEngine{ID: "b", Name: "B", URL: "https://b"}); err != nil {
			return err
		}
		if err := tx.SetDefaultSearchEngine("a"); err != nil {
			return err
		}
		return tx.SetDefaultSearchEngine("b")
	})
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

func TestClockPersistedAtomically(t *testing.T) {
	idx := open(t)

	err := idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.SaveClock(map[string]uint64{"device-a": 3, "device-b": 1})
	})
	require.NoError(t, err)

	c, err := idx.Clock()
	require.NoError(t, err)
	require.Equal(t, uint64(3), c.Get("device-a"))
	require.Equal(t, uint64(1), c.Get("device-b"))

	err = idx.WithTx(func(tx *stateindex.Tx) error {
		return tx.SaveClock(map[string]uint64{"device-a": 4})
	})
	require.NoError(t, err)

	c, err = idx.Clock()
	require.NoError(t, err)
	require.Equal(t, uint64(4), c.Get("device-a"))
	require.Equal(t, uint64(0), c.Get("device-b"))
}

func TestFailedTxRollsBack(t *testing.T) {
	idx := open(t)

	err := idx.WithTx(func(tx *stateindex.Tx) error {
		if err := tx.UpsertExtension(stateindex.Extension{ID: "ub@x", Name: "U", AddedAt: time.Now()}); err != nil {
			return err
		}
		return assertFailure()
	})
	require.Error(t, err)

	ids, err := idx.ExtensionIDs()
	require.NoError(t, err)
	require.NotContains(t, ids, "ub@x")
}

var errInjectedForTest = errors.New("stateindex: injected test failure")

func assertFailure() error {
	return errInjectedForTest
}
