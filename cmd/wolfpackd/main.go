package main

import (
	"fmt"
	"os"

	"github.com/wolfpack-dev/wolfpack/cmd/wolfpackd/launcher"
)

func main() {
	if err := launcher.Launch(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wolfpackd:", err)
		os.Exit(1)
	}
}
