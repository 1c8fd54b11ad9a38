package flags

import (
	"os"

	cli "gopkg.in/urfave/cli.v1"
)

// NewApp builds the base CLI application shell, leaving command-specific
// flag groups for the caller to append.
func NewApp(gitCommit, gitDate, usage string) *cli.App {
	app := cli.NewApp()
	app.Name = "wolfpackd"
	app.Usage = usage
	app.Version = versionString(gitCommit, gitDate)
	app.Writer = os.Stdout
	return app
}

func versionString(gitCommit, gitDate string) string {
	v := "0.1.0"
	if gitCommit != "" {
		v += "-" + gitCommit[:min(8, len(gitCommit))]
	}
	if gitDate != "" {
		v += " (" + gitDate + ")"
	}
	return v
}
