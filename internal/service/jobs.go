package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
)

// Recalculate prices every stored order under the current rules and writes
// back the figures that changed. Orders whose quote cannot be obtained are
// skipped and reported.
func (s *Service) Recalculate(ctx context.Context) (domain.RecalculateResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.RecalculateResponse{}, err
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return domain.RecalculateResponse{}, err
	}
	c, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.RecalculateResponse{}, err
	}
	engine := s.pricedEngine()

	var (
		mu   sync.Mutex
		resp = domain.RecalculateResponse{Total: len(orders)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, o := range orders {
		o := o
		g.Go(func() error {
			f, err := s.price(gctx, engine, c, o)
			if err != nil {
				if !errors.Is(err, pricing.ErrQuoteUnavailable) {
					return fmt.Errorf("order %d: %w", o.ID, err)
				}
				mu.Lock()
				resp.Skipped++
				resp.Errors = append(resp.Errors, fmt.Sprintf("order %d: %v", o.ID, err))
				mu.Unlock()
				return nil
			}
			if sameFinancials(o, f) {
				return nil
			}
			if err := s.repo.UpdateOrderFinancials(gctx, o.ID, f); err != nil {
				return fmt.Errorf("order %d: %w", o.ID, err)
			}
			mu.Lock()
			resp.Updated++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resp, err
	}

	log.Printf("[service] recalculated %d orders: %d updated, %d skipped", resp.Total, resp.Updated, resp.Skipped)
	s.logAudit(ctx, "orders_recalculate", "order", "*", fmt.Sprintf("total=%d,updated=%d,skipped=%d", resp.Total, resp.Updated, resp.Skipped))
	return resp, nil
}

// FixRetroactiveDates maintains launch dates and the retroactive flag.
//
// Without Shift it backfills orders lacking a launch date with their own
// date, which makes them non-retroactive. With Shift it moves the date of
// every retroactive order by ShiftDays and derives the flag again against
// its launch date. Nothing is written in dry-run mode.
func (s *Service) FixRetroactiveDates(ctx context.Context, opts domain.RetroFixOptions) (domain.RetroFixReport, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.RetroFixReport{}, err
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return domain.RetroFixReport{}, err
	}

	report := domain.RetroFixReport{DryRun: opts.DryRun, Changes: []domain.RetroFixChange{}}
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		change, ok := planRetroFix(o, opts)
		if !ok {
			continue
		}
		report.Scanned++
		if change == nil {
			continue
		}
		report.Changes = append(report.Changes, *change)
	}

	for _, change := range report.Changes {
		date := change.Date
		if change.NewDate != "" {
			date = change.NewDate
		}
		log.Printf("[retrofix] #%d: date %s -> %s; launch_date=%s; retroactive %t -> %t", change.OrderID, change.Date, date, change.LaunchDate, change.WasRetroactive, change.IsRetroactive)
		if opts.DryRun {
			continue
		}
		if err := s.repo.UpdateOrderDates(ctx, change.OrderID, date, change.LaunchDate, change.IsRetroactive); err != nil {
			return report, fmt.Errorf("order %d: %w", change.OrderID, err)
		}
	}

	if !opts.DryRun && len(report.Changes) > 0 {
		s.logAudit(ctx, "orders_retrofix", "order", "*", fmt.Sprintf("shift=%t,days=%d,changed=%d", opts.Shift, opts.ShiftDays, len(report.Changes)))
	}
	return report, nil
}

// planRetroFix returns whether the order is in scope for the run and, if so,
// the change it needs (nil when it is already consistent).
func planRetroFix(o domain.Order, opts domain.RetroFixOptions) (*domain.RetroFixChange, bool) {
	current, err := time.Parse(domain.DateLayout, o.Date)
	if err != nil {
		if (opts.Shift && o.IsRetroactive) || (!opts.Shift && o.LaunchDate == "") {
			log.Printf("[retrofix] WARN: skipping #%d: invalid date %q", o.ID, o.Date)
		}
		return nil, false
	}

	if !opts.Shift {
		if o.LaunchDate != "" {
			return nil, false
		}
		return &domain.RetroFixChange{
			OrderID:          o.ID,
			Date:             o.Date,
			LaunchDate:       o.Date,
			WasRetroactive:   o.IsRetroactive,
			IsRetroactive:    false,
			LaunchDateFilled: true,
		}, true
	}

	if !o.IsRetroactive {
		return nil, false
	}
	launch := o.LaunchDate
	if launch == "" {
		launch = o.Date
	}
	target := current.AddDate(0, 0, opts.ShiftDays).Format(domain.DateLayout)
	isRetro := target < launch
	if target == o.Date && isRetro == o.IsRetroactive {
		return nil, true
	}

	change := &domain.RetroFixChange{
		OrderID:          o.ID,
		Date:             o.Date,
		LaunchDate:       launch,
		WasRetroactive:   o.IsRetroactive,
		IsRetroactive:    isRetro,
		LaunchDateFilled: o.LaunchDate == "",
	}
	if target != o.Date {
		change.NewDate = target
	}
	return change, true
}
