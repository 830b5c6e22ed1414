package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"github.com/aussiebroadwan/siteadmin/internal/auth/app"
	"github.com/aussiebroadwan/siteadmin/internal/auth/cli"
)

func main() {
	cfg := app.LoadConfig()
	if cfg.DatabaseDriver == app.DriverMemory {
		log.Fatal("bootstrap needs a persistent database driver")
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	b := &cli.Bootstrap{
		Core: application.Core(),
		In:   bufio.NewReader(os.Stdin),
		Out:  os.Stdout,
		Fd:   int(os.Stdin.Fd()),
	}
	runErr := b.Run(context.Background())

	if err := application.Close(); err != nil {
		log.Printf("failed to close application: %v", err)
	}
	if runErr != nil {
		log.Fatalf("bootstrap failed: %v", runErr)
	}
}
