package main

import (
	"os"

	"github.com/sendyhalim/lezeh/internal/cli"
	// register database dialects
	_ "github.com/sendyhalim/lezeh/internal/db/extractors"
	"github.com/sendyhalim/lezeh/internal/logger"
)

func main() {
	defer logger.Sync()
	if err := cli.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}
