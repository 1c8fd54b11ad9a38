// Package launcher wires the wolfpackd CLI flags into a config.Config and
// starts the daemon loop, mirroring the teacher's cmd/opera/launcher
// structure (flag groups assembled onto one cli.App, Launch as the single
// entry point) scaled down to the bootstrap wolfpackd actually needs: the
// rich multi-command front-end (`wolfpack pair`, `wolfpack send`, ...)
// named in spec.md's Non-goals stays out of this binary.
package launcher

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/wolfpack-dev/wolfpack/config"
	"github.com/wolfpack-dev/wolfpack/daemon"
	"github.com/wolfpack-dev/wolfpack/flags"
)

var (
	gitCommit = ""
	gitDate   = ""

	app = flags.NewApp(gitCommit, gitDate, "the wolfpack peer-to-peer browser-profile sync daemon")
)

func init() {
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.NetworkFlags()...)
	app.Flags = append(app.Flags, flags.NodeFlags()...)
	app.Action = run
}

// Launch parses args and runs the daemon until an interrupt signal arrives.
func Launch(args []string) error {
	return app.Run(args)
}

// Config is the aggregated config.Config wolfpackd starts from, re-exported
// here so tests can build one from a synthetic cli.Context without reaching
// into the config package directly.
type Config = config.Config

// NewTestApp builds a cli.App carrying every flag group wolfpackd registers,
// for use by tests that want to exercise ConfigFromContext end to end
// without going through Launch.
func NewTestApp() *cli.App {
	testApp := flags.NewApp("", "", "test harness")
	testApp.Flags = append(testApp.Flags, flags.CommonFlags()...)
	testApp.Flags = append(testApp.Flags, flags.NetworkFlags()...)
	testApp.Flags = append(testApp.Flags, flags.NodeFlags()...)
	return testApp
}

// ConfigFromContext is configFromContext exported for tests.
func ConfigFromContext(ctx *cli.Context) Config {
	return configFromContext(ctx)
}

func run(ctx *cli.Context) error {
	cfg := configFromContext(ctx)

	log, err := daemon.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, log.WithField("device", cfg.Device.ID))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runErr := d.Run(runCtx)
	if err := d.Shutdown(context.Background()); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// configFromContext maps CLI flags onto config.Config, starting from
// config.Default() so any flag the operator didn't set keeps its sensible
// default (mirrors the teacher launcher's defaultConfig-then-override
// pattern).
func configFromContext(ctx *cli.Context) config.Config {
	cfg := config.Default()

	if v := ctx.GlobalString("sync-root"); v != "" {
		cfg.Device.SyncRoot = expandHome(v)
	}
	if v := ctx.GlobalString("device"); v != "" {
		cfg.Device.ID = v
	}
	cfg.Device.ProfileDir = ctx.GlobalString("profile-dir")
	cfg.Device.ExtensionsDir = ctx.GlobalString("extensions-dir")
	if w := ctx.GlobalStringSlice("pref-whitelist"); len(w) > 0 {
		cfg.Device.PrefWhitelist = w
	}
	if d := ctx.GlobalDuration("sync-interval"); d > 0 {
		cfg.Device.SyncInterval = d
	}

	if addrs := ctx.GlobalStringSlice("listen"); len(addrs) > 0 {
		cfg.Network.ListenAddrs = addrs
	}
	cfg.Network.EnableMDNS = ctx.GlobalBoolT("mdns")
	cfg.Network.EnableDHT = ctx.GlobalBool("dht")

	cfg.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	if f := ctx.GlobalString("log.format"); f != "" {
		cfg.Logging.Format = f
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.Logging.Color = ctx.GlobalBool("log.color")
	}
	cfg.Logging.SentryDSN = ctx.GlobalString("sentry.dsn")

	if s := ctx.GlobalString("control-socket"); s != "" {
		cfg.Control.SocketPath = s
	}

	return cfg
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
