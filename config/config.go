// Package config aggregates every subsystem's settings into the single
// struct the daemon entry point builds once at startup, mirroring the
// teacher launcher's Config-aggregation pattern (cmd/opera/launcher/config.go).
// It holds defaults only; translating CLI flags or a config file into a
// Config is the daemon command's job (cmd/wolfpackd/launcher), not this
// package's.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config aggregates every subsystem's configuration the daemon needs.
type Config struct {
	Device  DeviceConfig
	Network NetworkConfig
	Logging LoggingConfig
	Control ControlConfig
}

// DeviceConfig identifies this device and the browser profile it watches.
type DeviceConfig struct {
	ID            string
	SyncRoot      string // holds events/, keys/, and the state index
	ProfileDir    string
	ExtensionsDir string // defaults to <ProfileDir>/extensions when empty
	PrefWhitelist []string
	SyncInterval  time.Duration
}

// NetworkConfig configures the peer transport.
type NetworkConfig struct {
	ListenAddrs []string
	EnableMDNS  bool
	EnableDHT   bool
}

// LoggingConfig controls log verbosity/format/destination.
type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string // fatal-error reporting sink; disabled when empty
}

// ControlConfig configures the daemon's Unix-domain control socket.
type ControlConfig struct {
	SocketPath string
}

// Default returns a fully populated Config using the local hostname as the
// device identity and a random listen port, matching the teacher launcher's
// defaultConfig() pattern.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			ID:           hostnameOrFallback(),
			SyncRoot:     filepath.Join(homeDir(), ".wolfpack"),
			SyncInterval: 30 * time.Second,
		},
		Network: NetworkConfig{
			ListenAddrs: []string{"/ip4/0.0.0.0/tcp/0"},
			EnableMDNS:  true,
		},
		Logging: LoggingConfig{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
		Control: ControlConfig{
			SocketPath: "wolfpackd.sock",
		},
	}
}

// ExtensionsDirOrDefault resolves the configured extensions directory,
// falling back to <ProfileDir>/extensions when unset.
func (d DeviceConfig) ExtensionsDirOrDefault() string {
	if d.ExtensionsDir != "" {
		return d.ExtensionsDir
	}
	return filepath.Join(d.ProfileDir, "extensions")
}

func hostnameOrFallback() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "wolfpack-device"
	}
	return name
}

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}
