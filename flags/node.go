package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the browser profile this device
// watches and materializes into (§4.7/§4.8).
func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "profile-dir",
			Usage: "Browser profile directory this device watches and writes artifacts into",
		},
		cli.StringFlag{
			Name:  "extensions-dir",
			Usage: "Override path to the profile's extension directory (defaults to <profile-dir>/extensions)",
		},
		cli.StringSliceFlag{
			Name:  "pref-whitelist",
			Usage: "Glob pattern(s) of preference keys eligible for sync (repeatable)",
		},
	}
}
