package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"zenith/backoffice/internal/app"
	"zenith/backoffice/internal/config"
	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/service"
)

// retrofix maintains order launch dates and the retroactive flag.
//
//	MODE=backfill  fill missing launch dates with the order date (default)
//	MODE=shift     move retroactive orders by SHIFT_DAYS
//	DRY_RUN=false  apply the changes; the default only reports them
func main() {
	opts, err := optionsFromEnv()
	if err != nil {
		log.Fatalf("invalid options: %v", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backend, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	ctx = service.WithActor(ctx, domain.Actor{Username: "retrofix", Role: domain.RoleAdmin})
	report, err := backend.Service.FixRetroactiveDates(ctx, opts)
	if err != nil {
		log.Fatalf("retrofix failed: %v", err)
	}

	verb := "applied"
	if report.DryRun {
		verb = "would apply"
	}
	log.Printf("[retrofix] scanned %d orders, %s %d changes", report.Scanned, verb, len(report.Changes))
}

func optionsFromEnv() (domain.RetroFixOptions, error) {
	opts := domain.RetroFixOptions{DryRun: true}

	if raw := strings.TrimSpace(os.Getenv("DRY_RUN")); raw != "" {
		dry, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("DRY_RUN: %w", err)
		}
		opts.DryRun = dry
	}

	switch mode := strings.ToLower(strings.TrimSpace(os.Getenv("MODE"))); mode {
	case "", "backfill":
	case "shift":
		opts.Shift = true
		days, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SHIFT_DAYS")))
		if err != nil || days == 0 {
			return opts, fmt.Errorf("SHIFT_DAYS must be a non-zero integer in shift mode")
		}
		opts.ShiftDays = days
	default:
		return opts, fmt.Errorf("unknown MODE %q", mode)
	}
	return opts, nil
}
