package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
	"zenith/backoffice/internal/store"
)

const defaultProductType = "Serviço"

// catalog is the seller and service lookup used while pricing orders.
type catalog struct {
	sellers  map[int64]domain.User
	services map[int64]domain.Service
}

func (s *Service) loadCatalog(ctx context.Context) (*catalog, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, err
	}

	c := &catalog{
		sellers:  make(map[int64]domain.User, len(users)),
		services: make(map[int64]domain.Service, len(services)),
	}
	for _, u := range users {
		c.sellers[u.ID] = u
	}
	for _, svc := range services {
		c.services[svc.ID] = svc
	}
	return c, nil
}

func (c *catalog) seller(id *int64) *pricing.Seller {
	if id == nil {
		return nil
	}
	u, ok := c.sellers[*id]
	if !ok {
		return nil
	}
	return &pricing.Seller{CommissionRate: u.Commission}
}

func (c *catalog) rule(id *int64) *pricing.Rule {
	if id == nil {
		return nil
	}
	svc, ok := c.services[*id]
	if !ok {
		return nil
	}
	return ruleFor(svc)
}

// needsQuote reports whether pricing the order depends on a market quote.
func needsQuote(rule *pricing.Rule, productType string) bool {
	if rule == nil {
		return pricing.ResolveFormula(productType) != pricing.FormulaGeneric
	}
	return rule.Formula != pricing.FormulaGeneric || rule.Category == pricing.CategoryQuoteLinkedPercentage
}

// inputFor turns a stored order into engine input. Only declared values are
// read back; the stored cost acts as the explicit cost of orders without a
// service, where the engine returns it unchanged.
func inputFor(o domain.Order) pricing.Input {
	return pricing.Input{
		Quantity:           decimal.NewNullDecimal(o.Quantity),
		DeclaredTotalPrice: o.DeclaredPrice,
		DeclaredUnitPrice:  o.UnitPrice,
		InvoiceDeclaredUSD: o.InvoiceUSD,
		HistoricalQuote:    o.HistoricalQuote,
		ExplicitCost:       decimal.NewNullDecimal(o.Cost),
		PersistedQuote:     o.Quote,
		ProductType:        o.ProductType,
	}
}

func financialsFrom(res pricing.Result) domain.OrderFinancials {
	res = res.Round(2)
	f := domain.OrderFinancials{
		Price:           res.Price,
		Cost:            res.Cost,
		Profit:          res.Profit,
		CommissionValue: res.CommissionValue,
		Quote:           res.QuoteUsed,
	}
	if res.UnitPriceUsed.IsPositive() {
		f.UnitPriceUsed = decimal.NewNullDecimal(res.UnitPriceUsed)
	}
	return f
}

func applyFinancials(o *domain.Order, f domain.OrderFinancials) {
	o.Price = f.Price
	o.Cost = f.Cost
	o.Profit = f.Profit
	o.CommissionValue = f.CommissionValue
	o.Quote = f.Quote
	o.UnitPriceUsed = f.UnitPriceUsed
}

func sameFinancials(o domain.Order, f domain.OrderFinancials) bool {
	return o.Price.Equal(f.Price) &&
		o.Cost.Equal(f.Cost) &&
		o.Profit.Equal(f.Profit) &&
		o.CommissionValue.Equal(f.CommissionValue) &&
		sameNull(o.Quote, f.Quote) &&
		sameNull(o.UnitPriceUsed, f.UnitPriceUsed)
}

func sameNull(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func (s *Service) price(ctx context.Context, engine *pricing.Engine, c *catalog, o domain.Order) (domain.OrderFinancials, error) {
	res, err := engine.Compute(ctx, inputFor(o), c.seller(o.SellerID), c.rule(o.ServiceID))
	if err != nil {
		return domain.OrderFinancials{}, err
	}
	if res.InvoiceMismatch {
		log.Printf("[service] WARN: order %d declares invoice %s USD, tier fee is %s USD", o.ID, o.InvoiceUSD.Decimal, res.InvoiceFeeUSD)
	}
	if res.CommissionUngated {
		log.Printf("[service] WARN: order %d pays commission %s on profit %s", o.ID, res.CommissionValue, res.Profit)
	}
	return financialsFrom(res), nil
}

// backfillHistoricalQuote fills the closing quote of a retroactive order's
// date when its price depends on a quote and none was given.
func (s *Service) backfillHistoricalQuote(ctx context.Context, c *catalog, o *domain.Order) error {
	if !o.IsRetroactive || (o.HistoricalQuote.Valid && o.HistoricalQuote.Decimal.IsPositive()) {
		return nil
	}
	if !needsQuote(c.rule(o.ServiceID), o.ProductType) {
		return nil
	}
	if s.history == nil {
		return fmt.Errorf("%w: no historical quote source for %s", pricing.ErrQuoteUnavailable, o.Date)
	}

	day, err := time.Parse(domain.DateLayout, o.Date)
	if err != nil {
		return store.ErrInvalidInput
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.historyTimeout)
	defer cancel()
	closing, err := s.history.CloseOn(lookupCtx, day)
	if err != nil {
		if errors.Is(err, pricing.ErrQuoteUnavailable) {
			return err
		}
		return fmt.Errorf("%w: closing quote for %s: %v", pricing.ErrQuoteUnavailable, o.Date, err)
	}
	if !closing.IsPositive() {
		return fmt.Errorf("%w: non-positive closing quote for %s", pricing.ErrQuoteUnavailable, o.Date)
	}
	o.HistoricalQuote = decimal.NewNullDecimal(closing)
	return nil
}

func validDate(raw string) (string, error) {
	date := strings.TrimSpace(raw)
	if len(date) > len(domain.DateLayout) {
		date = date[:len(domain.DateLayout)]
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return "", store.ErrInvalidInput
	}
	return date, nil
}

func optionalID(id *int64) *int64 {
	if id == nil || *id < 1 {
		return nil
	}
	v := *id
	return &v
}

// ListOrders returns every order with figures recomputed under the current
// rules. The live quote is fetched at most once per call. Orders that cannot
// be priced keep their stored figures and are marked stale.
func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	engine := s.pricedEngine()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range orders {
		i := i
		g.Go(func() error {
			f, err := s.price(gctx, engine, c, orders[i])
			if err != nil {
				if !errors.Is(err, pricing.ErrQuoteUnavailable) {
					return err
				}
				log.Printf("[service] WARN: order %d shown with stored figures: %v", orders[i].ID, err)
				orders[i].Stale = true
				return nil
			}
			applyFinancials(&orders[i], f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *o, nil
}

// CreateOrder prices and stores a new order. Nothing is written when a
// required quote cannot be obtained.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if req.Customer == nil || strings.TrimSpace(*req.Customer) == "" {
		return domain.Order{}, store.ErrInvalidInput
	}

	today := s.today()
	date := today
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		parsed, err := validDate(*req.Date)
		if err != nil {
			return domain.Order{}, err
		}
		date = parsed
	}

	order := domain.Order{
		Customer:        strings.TrimSpace(*req.Customer),
		SellerID:        optionalID(req.SellerID),
		ServiceID:       optionalID(req.ServiceID),
		ProductType:     defaultProductType,
		UnitPrice:       req.UnitPrice.Null(),
		HistoricalQuote: req.HistoricalQuote.Null(),
		InvoiceUSD:      req.InvoiceUSD.Null(),
		Date:            date,
		LaunchDate:      today,
		IsRetroactive:   date < today,
		Status:          domain.OrderStatusOpen,
	}
	if req.ProductType != nil {
		order.ProductType = defaultString(*req.ProductType, defaultProductType)
	}
	if req.Quantity.Valid && req.Quantity.Decimal.IsPositive() {
		order.Quantity = req.Quantity.Decimal
	}
	if req.Price.Valid && req.Price.Decimal.IsPositive() {
		order.DeclaredPrice = req.Price.Null()
	}
	if req.Cost.Valid {
		order.Cost = req.Cost.Decimal
	}
	if req.Status != nil {
		order.Status = defaultString(*req.Status, domain.OrderStatusOpen)
	}
	if req.CommissionPaid != nil {
		order.CommissionPaid = *req.CommissionPaid
	}

	c, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.checkRefs(c, order); err != nil {
		return domain.Order{}, err
	}
	if err := s.backfillHistoricalQuote(ctx, c, &order); err != nil {
		return domain.Order{}, err
	}

	f, err := s.price(ctx, s.pricedEngine(), c, order)
	if err != nil {
		return domain.Order{}, err
	}
	applyFinancials(&order, f)

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_create", "order", fmt.Sprint(created.ID), fmt.Sprintf("customer=%s,price=%s,commission=%s,retroactive=%t", created.Customer, created.Price, created.CommissionValue, created.IsRetroactive))
	return *created, nil
}

// UpdateOrder merges the provided fields into the stored order and prices it
// again.
func (s *Service) UpdateOrder(ctx context.Context, id int64, req domain.OrderRequest) (domain.Order, error) {
	existing, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order := *existing

	if req.Customer != nil {
		customer := strings.TrimSpace(*req.Customer)
		if customer == "" {
			return domain.Order{}, store.ErrInvalidInput
		}
		order.Customer = customer
	}
	if req.SellerID != nil {
		order.SellerID = optionalID(req.SellerID)
	}
	if req.ServiceID != nil {
		order.ServiceID = optionalID(req.ServiceID)
	}
	if req.ProductType != nil {
		order.ProductType = defaultString(*req.ProductType, defaultProductType)
	}
	if req.Quantity.Present {
		order.Quantity = decimal.Zero
		if req.Quantity.Valid && req.Quantity.Decimal.IsPositive() {
			order.Quantity = req.Quantity.Decimal
		}
	}
	if req.UnitPrice.Present {
		order.UnitPrice = req.UnitPrice.Null()
	}
	switch {
	case req.Price.Present:
		order.DeclaredPrice = decimal.NullDecimal{}
		if req.Price.Valid && req.Price.Decimal.IsPositive() {
			order.DeclaredPrice = req.Price.Null()
		}
	case (req.Quantity.Present || req.UnitPrice.Present) && order.UnitPrice.Valid && order.UnitPrice.Decimal.IsPositive():
		// Let the total follow the new quantity or unit price.
		order.DeclaredPrice = decimal.NullDecimal{}
	}
	if req.Cost.Present {
		order.Cost = req.Cost.Decimal
	}
	if req.InvoiceUSD.Present {
		order.InvoiceUSD = req.InvoiceUSD.Null()
	}
	if req.HistoricalQuote.Present {
		order.HistoricalQuote = req.HistoricalQuote.Null()
	}
	if req.Status != nil {
		order.Status = defaultString(*req.Status, domain.OrderStatusOpen)
	}
	if req.CommissionPaid != nil {
		order.CommissionPaid = *req.CommissionPaid
	}
	if req.Date != nil {
		date, err := validDate(*req.Date)
		if err != nil {
			return domain.Order{}, err
		}
		order.Date = date
		if order.LaunchDate == "" {
			order.LaunchDate = s.today()
		}
		order.IsRetroactive = order.Date < order.LaunchDate
	}

	c, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.checkRefs(c, order); err != nil {
		return domain.Order{}, err
	}
	if err := s.backfillHistoricalQuote(ctx, c, &order); err != nil {
		return domain.Order{}, err
	}

	f, err := s.price(ctx, s.pricedEngine(), c, order)
	if err != nil {
		return domain.Order{}, err
	}
	applyFinancials(&order, f)

	updated, err := s.repo.UpdateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_update", "order", fmt.Sprint(id), fmt.Sprintf("price=%s,commission=%s", updated.Price, updated.CommissionValue))
	return *updated, nil
}

func (s *Service) checkRefs(c *catalog, o domain.Order) error {
	if o.SellerID != nil {
		if _, ok := c.sellers[*o.SellerID]; !ok {
			return fmt.Errorf("seller %d: %w", *o.SellerID, store.ErrInvalidInput)
		}
	}
	if o.ServiceID != nil {
		if _, ok := c.services[*o.ServiceID]; !ok {
			return fmt.Errorf("service %d: %w", *o.ServiceID, store.ErrInvalidInput)
		}
	}
	return nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, req domain.OrderStatusRequest) (domain.Order, error) {
	status := defaultString(req.Status, domain.OrderStatusOpen)
	updated, err := s.repo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_status", "order", fmt.Sprint(id), "status="+status)
	return *updated, nil
}

func (s *Service) UpdateOrderCommissionPaid(ctx context.Context, id int64, req domain.CommissionPaidRequest) (domain.Order, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Order{}, err
	}
	updated, err := s.repo.UpdateOrderCommissionPaid(ctx, id, req.CommissionPaid)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_commission", "order", fmt.Sprint(id), fmt.Sprintf("paid=%t", req.CommissionPaid))
	return *updated, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "order_delete", "order", fmt.Sprint(id), "")
	return nil
}
