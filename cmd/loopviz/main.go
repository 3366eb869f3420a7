// Command loopviz simulates how an event loop schedules a small program.
package main

import (
	"os"

	"github.com/asitkr/event-loop-visualizer/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewRootCommand()))
}
