package main

import (
	"os"

	"github.com/bdobrica/Kioku/internal/kioku/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
