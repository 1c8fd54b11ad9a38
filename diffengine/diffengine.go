// Package diffengine computes the event list that would bring the local
// state index up to date with an observed browser profile (§4.6). It has
// no I/O of its own: the profile scan and the preference whitelist are
// handed in by the caller, which keeps this package decoupled from the
// excluded profile-parsing collaborator (mozLz4, profiles.ini, XPI).
package diffengine

import (
	"path"
	"strconv"

	"github.com/wolfpack-dev/wolfpack/event"
	"github.com/wolfpack-dev/wolfpack/stateindex"
)

// ObservedExtension is one extension the profile scan found installed.
type ObservedExtension struct {
	ID string
}

// ObservedContainer is one contextual-identity container the profile scan found.
type ObservedContainer struct {
	ID string
}

// ObservedHandler is one registered protocol-handler template.
type ObservedHandler struct {
	Protocol string
	Template string
}

// ObservedPref is one preference the profile scan found set, prior to
// whitelist filtering.
type ObservedPref struct {
	Key  string
	Type event.PrefType
	Bool bool
	Int  int64
	Str  string
}

// Observation is the profile-scan snapshot the diff engine compares against
// the state index. Search engines are intentionally absent: the diff
// engine does not scan them in this version (§4.6, §9).
type Observation struct {
	Extensions []ObservedExtension
	Containers []ObservedContainer
	Handlers   []ObservedHandler
	Prefs      []ObservedPref
}

// Diff compares obs against idx and returns the event list that would bring
// the index's materialized view up to date with obs, per the per-domain
// rules of §4.6. prefWhitelist is a set of glob-style key patterns (matched
// with path.Match, e.g. "browser.*"); prefs outside the whitelist are
// ignored entirely, in both directions.
func Diff(idx *stateindex.Index, obs Observation, prefWhitelist []string) ([]event.Event, error) {
	var events []event.Event

	extEvents, err := diffExtensions(idx, obs.Extensions)
	if err != nil {
		return nil, err
	}
	events = append(events, extEvents...)

	containerEvents, err := diffContainers(idx, obs.Containers)
	if err != nil {
		return nil, err
	}
	events = append(events, containerEvents...)

	handlerEvents, err := diffHandlers(idx, obs.Handlers)
	if err != nil {
		return nil, err
	}
	events = append(events, handlerEvents...)

	prefEvents, err := diffPrefs(idx, obs.Prefs, prefWhitelist)
	if err != nil {
		return nil, err
	}
	events = append(events, prefEvents...)

	return events, nil
}

func diffExtensions(idx *stateindex.Index, observed []ObservedExtension) ([]event.Event, error) {
	indexed, err := idx.ExtensionIDs()
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{}, len(observed))
	var events []event.Event
	for _, ext := range observed {
		current[ext.ID] = struct{}{}
		if _, ok := indexed[ext.ID]; !ok {
			events = append(events, event.ExtensionAdded{ID: ext.ID})
		}
	}
	for id := range indexed {
		if _, ok := current[id]; !ok {
			events = append(events, event.ExtensionRemoved{ID: id})
		}
	}
	return events, nil
}

// diffContainers never emits ContainerUpdated: §4.6 "No ContainerUpdated is
// emitted by the diff engine in this version" (§9 open question).
func diffContainers(idx *stateindex.Index, observed []ObservedContainer) ([]event.Event, error) {
	indexed, err := idx.ContainerIDs()
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{}, len(observed))
	var events []event.Event
	for _, c := range observed {
		current[c.ID] = struct{}{}
		if _, ok := indexed[c.ID]; !ok {
			events = append(events, event.ContainerAdded{ID: c.ID})
		}
	}
	for id := range indexed {
		if _, ok := current[id]; !ok {
			events = append(events, event.ContainerRemoved{ID: id})
		}
	}
	return events, nil
}

func diffHandlers(idx *stateindex.Index, observed []ObservedHandler) ([]event.Event, error) {
	indexed, err := idx.Handlers()
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{}, len(observed))
	var events []event.Event
	for _, h := range observed {
		current[h.Protocol] = struct{}{}
		if existing, ok := indexed[h.Protocol]; !ok || existing != h.Template {
			events = append(events, event.HandlerSet{Protocol: h.Protocol, HandlerTemplate: h.Template})
		}
	}
	for protocol := range indexed {
		if _, ok := current[protocol]; !ok {
			events = append(events, event.HandlerRemoved{Protocol: protocol})
		}
	}
	return events, nil
}

func diffPrefs(idx *stateindex.Index, observed []ObservedPref, whitelist []string) ([]event.Event, error) {
	indexed, err := idx.Prefs()
	if err != nil {
		return nil, err
	}

	current := make(map[string]struct{})
	var events []event.Event
	for _, p := range observed {
		if !whitelisted(p.Key, whitelist) {
			continue
		}
		current[p.Key] = struct{}{}
		value := prefValueString(p)
		existing, ok := indexed[p.Key]
		if !ok || existing.Value != value || existing.Type != stateindex.PrefType(p.Type) {
			events = append(events, event.PrefSet{Key: p.Key, Type: p.Type, BoolValue: p.Bool, IntValue: p.Int, StringValue: p.Str})
		}
	}
	for key := range indexed {
		if !whitelisted(key, whitelist) {
			continue
		}
		if _, ok := current[key]; !ok {
			events = append(events, event.PrefRemoved{Key: key})
		}
	}
	return events, nil
}

func whitelisted(key string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			return true
		}
	}
	return false
}

func prefValueString(p ObservedPref) string {
	switch p.Type {
	case event.PrefBool:
		if p.Bool {
			return "true"
		}
		return "false"
	case event.PrefInt:
		return strconv.FormatInt(p.Int, 10)
	default:
		return p.Str
	}
}
