package daemon

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfpack-dev/wolfpack/diffengine"
	"github.com/wolfpack-dev/wolfpack/event"
)

// scanProfile builds the diffengine.Observation the daemon feeds into one
// sync cycle. It is a minimal stand-in for the excluded browser-profile
// collaborator (spec §1: mozLz4, profiles.ini, XPI parsing stay out of
// core scope): it only reads the artifacts this core itself produces
// (profile/writequeue.go's containers.json/handlers.json/user.js) and the
// extension files syncengine itself installs, so a solo daemon's own
// writes round-trip through the diff engine without a real browser
// attached. A production build swaps this for the real profile reader;
// nothing in diffengine or syncengine depends on how Observation was
// built.
func scanProfile(profileDir, extensionsDir string, prefWhitelist []string) (diffengine.Observation, error) {
	var obs diffengine.Observation

	exts, err := scanExtensions(extensionsDir)
	if err != nil {
		return obs, err
	}
	obs.Extensions = exts

	containers, err := scanContainers(profileDir)
	if err != nil {
		return obs, err
	}
	obs.Containers = containers

	handlers, err := scanHandlers(profileDir)
	if err != nil {
		return obs, err
	}
	obs.Handlers = handlers

	prefs, err := scanPrefs(profileDir, prefWhitelist)
	if err != nil {
		return obs, err
	}
	obs.Prefs = prefs

	return obs, nil
}

func scanExtensions(extensionsDir string) ([]diffengine.ObservedExtension, error) {
	entries, err := os.ReadDir(extensionsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []diffengine.ObservedExtension
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xpi") {
			continue
		}
		out = append(out, diffengine.ObservedExtension{ID: strings.TrimSuffix(e.Name(), ".xpi")})
	}
	return out, nil
}

func scanContainers(profileDir string) ([]diffengine.ObservedContainer, error) {
	var rows []struct {
		ID string `json:"ID"`
	}
	if err := readJSONIfExists(filepath.Join(profileDir, "containers.json"), &rows); err != nil {
		return nil, err
	}
	out := make([]diffengine.ObservedContainer, 0, len(rows))
	for _, r := range rows {
		out = append(out, diffengine.ObservedContainer{ID: r.ID})
	}
	return out, nil
}

func scanHandlers(profileDir string) ([]diffengine.ObservedHandler, error) {
	m := map[string]string{}
	if err := readJSONIfExists(filepath.Join(profileDir, "handlers.json"), &m); err != nil {
		return nil, err
	}
	out := make([]diffengine.ObservedHandler, 0, len(m))
	for protocol, template := range m {
		out = append(out, diffengine.ObservedHandler{Protocol: protocol, Template: template})
	}
	return out, nil
}

// prefLineRE matches one line of the user_pref("key", value); format
// profile/writequeue.go's writePrefsJS produces.
var prefLineRE = regexp.MustCompile(`^user_pref\("([^"]+)",\s*(.+)\);$`)

func scanPrefs(profileDir string, whitelist []string) ([]diffengine.ObservedPref, error) {
	data, err := os.ReadFile(filepath.Join(profileDir, "user.js"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []diffengine.ObservedPref
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := prefLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, raw := m[1], m[2]
		if !keyWhitelisted(key, whitelist) {
			continue
		}
		out = append(out, parsePrefLiteral(key, raw))
	}
	return out, nil
}

func keyWhitelisted(key string, whitelist []string) bool {
	for _, pattern := range whitelist {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			return true
		}
	}
	return false
}

func parsePrefLiteral(key, raw string) diffengine.ObservedPref {
	switch {
	case raw == "true" || raw == "false":
		return diffengine.ObservedPref{Key: key, Type: event.PrefBool, Bool: raw == "true"}
	case strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`):
		return diffengine.ObservedPref{Key: key, Type: event.PrefString, Str: strings.Trim(raw, `"`)}
	default:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return diffengine.ObservedPref{Key: key, Type: event.PrefInt, Int: n}
		}
		return diffengine.ObservedPref{Key: key, Type: event.PrefString, Str: raw}
	}
}

func readJSONIfExists(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
