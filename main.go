package main

import (
	"fmt"
	"os"

	"github.com/MLAB-project/pysdr/cmd"
	"github.com/MLAB-project/pysdr/internal/buildinfo"
)

// set with -ldflags "-X main.version=... -X main.buildDate=... -X main.commit=..."
var (
	version   = "dev"
	buildDate = buildinfo.UnknownValue
	commit    = ""
)

func main() {
	build := buildinfo.NewContext(version, buildDate, commit)
	if err := cmd.RootCommand(build).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
