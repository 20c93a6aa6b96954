package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("ZENITH_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ZENITH_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx, "integration-master"); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func TestOrderRoundTripKeepsDecimalsAndDates(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	seller, err := s.CreateUser(ctx, domain.User{
		Name:       fmt.Sprintf("Seller IT %d", stamp),
		Email:      fmt.Sprintf("seller-%d@it.local", stamp),
		Commission: decimal.RequireFromString("12.5"),
		Status:     domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc, err := s.CreateService(ctx, domain.Service{
		Name:           fmt.Sprintf("Remessa IT %d", stamp),
		CostType:       "percentual",
		CostPercentage: decimal.RequireFromString("1.2"),
		Status:         domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DeleteService(ctx, svc.ID)
		_ = s.DeleteUser(ctx, seller.ID)
	})

	created, err := s.CreateOrder(ctx, domain.Order{
		Customer:        fmt.Sprintf("Customer IT %d", stamp),
		SellerID:        &seller.ID,
		ServiceID:       &svc.ID,
		ProductType:     "remessa",
		Quantity:        decimal.RequireFromString("6000"),
		UnitPrice:       decimal.NewNullDecimal(decimal.RequireFromString("5.7")),
		HistoricalQuote: decimal.NewNullDecimal(decimal.RequireFromString("5.5")),
		Price:           decimal.RequireFromString("34428"),
		Cost:            decimal.RequireFromString("33535.15"),
		Profit:          decimal.RequireFromString("892.85"),
		CommissionValue: decimal.RequireFromString("111.61"),
		Date:            "2024-03-15",
		LaunchDate:      "2024-04-01",
		IsRetroactive:   true,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DeleteOrder(ctx, created.ID)
	})

	got, err := s.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Date != "2024-03-15" || got.LaunchDate != "2024-04-01" || !got.IsRetroactive {
		t.Fatalf("unexpected dates: %+v", got)
	}
	if !got.Cost.Equal(decimal.RequireFromString("33535.15")) || !got.HistoricalQuote.Decimal.Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("unexpected decimals: cost=%s historical=%s", got.Cost, got.HistoricalQuote.Decimal)
	}
	if got.Quote.Valid {
		t.Fatalf("expected empty quote, got %s", got.Quote.Decimal)
	}
	if got.SellerName != seller.Name || got.ServiceName != svc.Name {
		t.Fatalf("expected joined names, got %q / %q", got.SellerName, got.ServiceName)
	}
	if got.Status != domain.OrderStatusOpen {
		t.Fatalf("expected default status open, got %s", got.Status)
	}

	if err := s.UpdateOrderFinancials(ctx, created.ID, domain.OrderFinancials{
		Price:           decimal.RequireFromString("34428"),
		Cost:            decimal.RequireFromString("33535.15"),
		Profit:          decimal.RequireFromString("892.85"),
		CommissionValue: decimal.RequireFromString("89.29"),
		Quote:           decimal.NewNullDecimal(decimal.RequireFromString("5.5")),
		UnitPriceUsed:   decimal.NewNullDecimal(decimal.RequireFromString("5.7")),
	}); err != nil {
		t.Fatalf("update financials: %v", err)
	}
	repriced, err := s.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get repriced order: %v", err)
	}
	if !repriced.UnitPrice.Valid || !repriced.UnitPrice.Decimal.Equal(decimal.RequireFromString("5.7")) {
		t.Fatalf("expected declared unit price to survive repricing, got %+v", repriced.UnitPrice)
	}
	if !repriced.UnitPriceUsed.Valid || repriced.DeclaredPrice.Valid {
		t.Fatalf("expected unit price used and no declared total, got used=%+v declared=%+v", repriced.UnitPriceUsed, repriced.DeclaredPrice)
	}

	if err := s.DeleteUser(ctx, seller.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	detached, err := s.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get detached order: %v", err)
	}
	if detached.SellerID != nil {
		t.Fatalf("expected seller to be detached after delete")
	}
}

func TestAssignmentIsIdempotent(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	user, err := s.CreateUser(ctx, domain.User{Name: fmt.Sprintf("Assign IT %d", stamp), Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc, err := s.CreateService(ctx, domain.Service{Name: fmt.Sprintf("Service IT %d", stamp), CostType: "fixo"})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DeleteService(ctx, svc.ID)
		_ = s.DeleteUser(ctx, user.ID)
	})

	first, created, err := s.CreateAssignment(ctx, user.ID, svc.ID)
	if err != nil || !created {
		t.Fatalf("first assignment: created=%v err=%v", created, err)
	}
	second, created, err := s.CreateAssignment(ctx, user.ID, svc.ID)
	if err != nil {
		t.Fatalf("second assignment: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected duplicate to return existing assignment %d, got %d created=%v", first.ID, second.ID, created)
	}

	if _, _, err := s.CreateAssignment(ctx, user.ID, -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown service, got %v", err)
	}
}

func TestMasterAccountIsSeeded(t *testing.T) {
	s := newIntegrationStore(t)

	account, err := s.FindAccount(context.Background(), "ADMIN")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", account.Role)
	}
}
