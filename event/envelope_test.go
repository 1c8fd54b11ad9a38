package event_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/event"
)

func TestNewEnvelopeStampsIDAndTimestamp(t *testing.T) {
	c := clock.New()
	c.Increment("device-a")

	env, err := event.NewEnvelope("device-a", c, event.ExtensionAdded{ID: "ub@x", Name: "U"})
	require.NoError(t, err)

	require.NotEqual(t, [16]byte{}, [16]byte(env.ID))
	require.Equal(t, "device-a", env.Origin)
	require.False(t, env.Timestamp.IsZero())
	require.Equal(t, uint64(1), env.Clock.Get("device-a"))
	require.Equal(t, event.ExtensionAddedKind, env.Payload.Kind())
}

func TestEnvelopeIDsAreTimeOrdered(t *testing.T) {
	c := clock.New()
	first, err := event.NewEnvelope("device-a", c, event.PrefRemoved{Key: "x"})
	require.NoError(t, err)
	second, err := event.NewEnvelope("device-a", c, event.PrefRemoved{Key: "y"})
	require.NoError(t, err)

	require.Less(t, first.ID.String(), second.ID.String())
}

func TestKindStringCoversEveryVariant(t *testing.T) {
	variants := []event.Event{
		event.ExtensionAdded{},
		event.ExtensionRemoved{},
		event.ExtensionInstalled{},
		event.ExtensionUninstalled{},
		event.ContainerAdded{},
		event.ContainerRemoved{},
		event.ContainerUpdated{},
		event.HandlerSet{},
		event.HandlerRemoved{},
		event.SearchEngineAdded{},
		event.SearchEngineRemoved{},
		event.SearchEngineDefault{},
		event.PrefSet{},
		event.PrefRemoved{},
		event.TabSent{},
		event.TabReceived{},
	}
	for _, v := range variants {
		require.NotContains(t, v.Kind().String(), "Kind(")
	}
}
