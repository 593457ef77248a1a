package main

import (
	"os"

	"github.com/fieldprobe/rigger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
