package main

import (
	"os"

	"github.com/datasense-ai/server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
