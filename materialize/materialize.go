// Package materialize applies ordered event envelopes to the durable state
// index. It is deliberately a flat variant dispatch — a single switch over
// event.Kind — rather than a visitor hierarchy, per the design note in
// spec §9 ("keep it as a single function... to preserve readability and
// exhaustive-match safety").
package materialize

import (
	"fmt"

	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

// Apply materializes envs in order against idx, skipping any envelope whose
// id is already recorded in applied_events (§4.5 step 1). localDevice is
// this device's id, used to decide whether a TabSent envelope targets this
// device. It returns the number of envelopes actually applied (i.e. not
// skipped as already-seen).
func Apply(idx *stateindex.Index, envs []event.Envelope, localDevice string) (int, error) {
	applied := 0
	for _, env := range envs {
		didApply, err := applyOne(idx, env, localDevice)
		if err != nil {
			return applied, fmt.Errorf("materialize: envelope %s: %w", env.ID, err)
		}
		if didApply {
			applied++
		}
	}
	return applied, nil
}

func applyOne(idx *stateindex.Index, env event.Envelope, localDevice string) (bool, error) {
	applied := false
	err := idx.WithTx(func(tx *stateindex.Tx) error {
		seen, err := tx.HasApplied(env.ID.String())
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		if err := dispatch(tx, env, localDevice); err != nil {
			return err
		}
		applied = true
		return tx.MarkApplied(env.ID.String(), env.Origin, env.Timestamp)
	})
	return applied, err
}

// dispatch applies the per-variant rule of §4.5 for one envelope's payload,
// inside the caller's transaction.
func dispatch(tx *stateindex.Tx, env event.Envelope, localDevice string) error {
	switch e := env.Payload.(type) {
	case event.ExtensionAdded:
		return tx.UpsertExtension(stateindex.Extension{ID: e.ID, Name: e.Name, AddedAt: env.Timestamp})
	case event.ExtensionRemoved:
		return tx.DeleteExtension(e.ID)
	case event.ExtensionInstalled:
		if err := tx.UpsertExtension(stateindex.Extension{ID: e.ID, Name: e.ID, AddedAt: env.Timestamp}); err != nil {
			return err
		}
		return tx.UpsertExtensionPackage(stateindex.ExtensionPackage{
			ExtensionID: e.ID,
			Version:     e.Version,
			SourceKind:  e.Source.Kind,
			SourceData:  e.Source.Data,
			PackageBlob: e.PackageBlobB64,
			InstalledAt: env.Timestamp,
		})
	case event.ExtensionUninstalled:
		if err := tx.DeleteExtension(e.ID); err != nil {
			return err
		}
		return tx.DeleteExtensionPackage(e.ID)
	case event.ContainerAdded:
		return tx.UpsertContainer(stateindex.Container{ID: e.ID, Name: e.Name, Color: e.Color, Icon: e.Icon})
	case event.ContainerRemoved:
		return tx.DeleteContainer(e.ID)
	case event.ContainerUpdated:
		// §4.5: applied only when all three optional fields are present;
		// a partial update is silently ignored (§9 open question).
		if e.Name == nil || e.Color == nil || e.Icon == nil {
			return nil
		}
		return tx.UpsertContainer(stateindex.Container{ID: e.ID, Name: *e.Name, Color: *e.Color, Icon: *e.Icon})
	case event.HandlerSet:
		return tx.UpsertHandler(stateindex.Handler{Protocol: e.Protocol, HandlerTemplate: e.HandlerTemplate})
	case event.HandlerRemoved:
		return tx.DeleteHandler(e.Protocol)
	case event.SearchEngineAdded:
		return tx.UpsertSearchEngine(stateindex.SearchEngine{ID: e.ID, Name: e.Name, URL: e.URL})
	case event.SearchEngineRemoved:
		return tx.DeleteSearchEngine(e.ID)
	case event.SearchEngineDefault:
		return tx.SetDefaultSearchEngine(e.ID)
	case event.PrefSet:
		return tx.UpsertPref(stateindex.Pref{Key: e.Key, Value: prefValueString(e), Type: stateindex.PrefType(e.Type)})
	case event.PrefRemoved:
		return tx.DeletePref(e.Key)
	case event.TabSent:
		if e.ToDevice != localDevice {
			return nil
		}
		return tx.InsertPendingTab(stateindex.PendingTab{
			ID:         env.ID.String(),
			URL:        e.URL,
			Title:      e.Title,
			FromDevice: env.Origin,
			SentAt:     env.Timestamp,
		})
	case event.TabReceived:
		return tx.DeletePendingTab(e.TabID)
	default:
		return fmt.Errorf("materialize: unhandled event kind %v", env.Payload.Kind())
	}
}

// prefValueString renders a PrefSet's typed value into the single text
// column prefs.value_str is stored as.
func prefValueString(e event.PrefSet) string {
	switch e.Type {
	case event.PrefBool:
		if e.BoolValue {
			return "true"
		}
		return "false"
	case event.PrefInt:
		return fmt.Sprintf("%d", e.IntValue)
	default:
		return e.StringValue
	}
}
