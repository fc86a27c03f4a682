package main

import (
	"fmt"
	"os"

	"github.com/jmaddaus/jiramigrate/internal/cli"
	"github.com/jmaddaus/jiramigrate/internal/ui"
)

var version = "dev"

func main() {
	if err := cli.Run(os.Args[1:], version); err != nil {
		fmt.Fprintln(os.Stderr, ui.Fail("error: "+err.Error()))
		os.Exit(1)
	}
}
