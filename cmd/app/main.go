// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"codeberg.org/oliverandrich/aura/internal/config"
	"codeberg.org/oliverandrich/aura/internal/server"
	"github.com/urfave/cli/v3"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:     "app",
		Usage:    "Run the AURA authentication API",
		Version:  Version,
		Flags:    config.Flags(),
		Action:   server.Run,
		Commands: server.Commands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
