package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// CommonFlags returns the base set of CLI flags every wolfpackd command uses.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "sync-root",
			Usage: "Directory holding the event log, key material, and state index",
			Value: "~/.wolfpack",
		},
		cli.StringFlag{
			Name:  "device",
			Usage: "This device's identity; defaults to the machine hostname",
		},
		cli.StringFlag{
			Name:  "log.format",
			Usage: "Log output format (text|json)",
			Value: "text",
		},
		cli.IntFlag{
			Name:  "log.verbosity",
			Usage: "Logging verbosity (0=fatal,1=error,2=warn,3=info,4=debug,5=trace)",
			Value: 3,
		},
		cli.BoolFlag{
			Name:  "log.color",
			Usage: "Enable colored log output",
		},
		cli.StringFlag{
			Name:  "sentry.dsn",
			Usage: "Sentry DSN for fatal-error reporting (disabled when empty)",
		},
		cli.StringFlag{
			Name:  "control-socket",
			Usage: "Path to the Unix-domain control socket",
			Value: "wolfpackd.sock",
		},
		cli.DurationFlag{
			Name:  "sync-interval",
			Usage: "How often the daemon runs a full sync cycle absent filesystem events",
			Value: 30 * time.Second,
		},
	}
}
