package service

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"zenith/backoffice/internal/domain"
)

// Dashboard totals the recomputed orders, excluding cancelled ones, overall
// and per seller.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	orders, err := s.ListOrders(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{BySeller: []domain.SellerSummary{}, GeneratedAt: s.now().UTC()}
	bySeller := make(map[int64]*domain.SellerSummary)
	for _, o := range orders {
		if strings.EqualFold(o.Status, domain.OrderStatusCancelled) {
			continue
		}
		summary.Orders++
		summary.Revenue = summary.Revenue.Add(o.Price)
		summary.Cost = summary.Cost.Add(o.Cost)
		summary.Profit = summary.Profit.Add(o.Profit)
		summary.Commission = summary.Commission.Add(o.CommissionValue)
		if o.CommissionPaid {
			summary.CommissionPaid = summary.CommissionPaid.Add(o.CommissionValue)
		} else {
			summary.CommissionUnpaid = summary.CommissionUnpaid.Add(o.CommissionValue)
		}

		if o.SellerID == nil {
			continue
		}
		row, ok := bySeller[*o.SellerID]
		if !ok {
			row = &domain.SellerSummary{SellerID: *o.SellerID, SellerName: o.SellerName}
			bySeller[*o.SellerID] = row
		}
		row.Orders++
		row.Revenue = row.Revenue.Add(o.Price)
		row.Profit = row.Profit.Add(o.Profit)
		row.Commission = row.Commission.Add(o.CommissionValue)
		if !o.CommissionPaid {
			row.CommissionUnpaid = row.CommissionUnpaid.Add(o.CommissionValue)
		}
	}

	for _, row := range bySeller {
		summary.BySeller = append(summary.BySeller, *row)
	}
	slices.SortFunc(summary.BySeller, func(a, b domain.SellerSummary) int {
		if c := b.Commission.Cmp(a.Commission); c != 0 {
			return c
		}
		return cmp.Compare(a.SellerID, b.SellerID)
	})
	return summary, nil
}
