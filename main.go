package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teaminsighter/copy-gum-new-sub001/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	copygum, err := app.New()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := copygum.Run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
