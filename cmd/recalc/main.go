package main

import (
	"context"
	"log"
	"time"

	"zenith/backoffice/internal/app"
	"zenith/backoffice/internal/config"
	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/service"
)

// recalc prices every stored order under the current rules and writes back
// the figures that changed.
func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backend, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	ctx = service.WithActor(ctx, domain.Actor{Username: "recalc", Role: domain.RoleAdmin})
	resp, err := backend.Service.Recalculate(ctx)
	if err != nil {
		log.Fatalf("recalculate failed after %d updates: %v", resp.Updated, err)
	}
	for _, msg := range resp.Errors {
		log.Printf("[recalc] WARN: %s", msg)
	}
	log.Printf("[recalc] done: %d orders, %d updated, %d skipped", resp.Total, resp.Updated, resp.Skipped)
}
