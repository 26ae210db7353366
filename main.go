package main

import (
	"os"

	"github.com/prepair-dev/prepair/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
