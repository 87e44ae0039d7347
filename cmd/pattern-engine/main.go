package main

import (
	"os"

	"github.com/patternhq/pattern-engine/cmd/pattern-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
