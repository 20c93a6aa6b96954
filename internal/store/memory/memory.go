package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	users       map[int64]domain.User
	services    map[int64]domain.Service
	assignments map[int64]domain.Assignment
	orders      map[int64]domain.Order
	accounts    map[string]domain.AuthAccount
	auditLogs   []domain.AuditLog
	lastID      int64
}

// seedAccounts builds the master admin account for dev/demo mode. The
// password is read from MASTER_PASSWORD; when unset a dev default is used
// with a warning.
func seedAccounts() map[string]domain.AuthAccount {
	password := envOr("MASTER_PASSWORD", "Senha@123")
	if os.Getenv("MASTER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set MASTER_PASSWORD to override.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	account := domain.AuthAccount{
		ID:           1,
		Login:        "admin",
		Email:        "admin@zenith.local",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	return map[string]domain.AuthAccount{strings.ToLower(account.Login): account}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with only the master admin account.
func New() *Store {
	return &Store{
		users:       make(map[int64]domain.User),
		services:    make(map[int64]domain.Service),
		assignments: make(map[int64]domain.Assignment),
		orders:      make(map[int64]domain.Order),
		accounts:    seedAccounts(),
		auditLogs:   make([]domain.AuditLog, 0, 128),
		lastID:      1,
	}
}

// NewSeeded returns a store with demo sellers, services and assignments.
func NewSeeded() *Store {
	s := New()

	sellers := []domain.User{
		{Name: "Carla Mendes", Email: "carla@zenith.local", Phone: "11999990001", Role: "Vendedor", Commission: decimal.NewFromInt(10), Status: domain.StatusActive},
		{Name: "Rafael Lima", Email: "rafael@zenith.local", Phone: "11999990002", Role: "Gerente", Commission: decimal.RequireFromString("7.5"), Status: domain.StatusActive},
	}
	for _, u := range sellers {
		s.lastID++
		u.ID = s.lastID
		s.users[u.ID] = u
	}

	services := []domain.Service{
		{Name: "Remessa", CostType: "percentual", CostPercentage: decimal.RequireFromString("1.2"), Status: domain.StatusActive, Description: "Remessa internacional em USD"},
		{Name: "USDT", CostType: "percentual", CostPercentage: decimal.RequireFromString("0.3"), Status: domain.StatusActive, Description: "Venda de USDT"},
		{Name: "Consultoria", CostType: "fixo", CostFixed: decimal.NewFromInt(150), Price: decimal.NewFromInt(500), Status: domain.StatusActive},
		{Name: "Seguro Viagem", CostType: "percentual", CostPercentage: decimal.NewFromInt(30), Price: decimal.NewFromInt(200), Status: domain.StatusActive},
		{Name: "Euro em especie", CostType: "cotacao_percentual", CostPercentage: decimal.NewFromInt(2), Status: domain.StatusActive},
	}
	for _, svc := range services {
		s.lastID++
		svc.ID = s.lastID
		s.services[svc.ID] = svc
	}

	for _, pair := range [][2]int64{{2, 4}, {2, 5}, {3, 6}} {
		s.lastID++
		s.assignments[s.lastID] = domain.Assignment{ID: s.lastID, UserID: pair[0], ServiceID: pair[1]}
	}

	return s
}

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int { return cmpInt64(a.ID, b.ID) })
	return users, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	if strings.TrimSpace(user.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = s.nextID()
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	if strings.TrimSpace(user.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	for aid, a := range s.assignments {
		if a.UserID == id {
			delete(s.assignments, aid)
		}
	}
	for oid, o := range s.orders {
		if o.SellerID != nil && *o.SellerID == id {
			o.SellerID = nil
			s.orders[oid] = o
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListServices(_ context.Context) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.Service, 0, len(s.services))
	for _, svc := range s.services {
		services = append(services, svc)
	}
	slices.SortFunc(services, func(a, b domain.Service) int { return cmpInt64(a.ID, b.ID) })
	return services, nil
}

func (s *Store) GetService(_ context.Context, id int64) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &svc, nil
}

func (s *Store) CreateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	svc.ID = s.nextID()
	s.services[svc.ID] = svc
	return &svc, nil
}

func (s *Store) UpdateService(_ context.Context, svc domain.Service) (*domain.Service, error) {
	if strings.TrimSpace(svc.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[svc.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.services[svc.ID] = svc
	return &svc, nil
}

func (s *Store) DeleteService(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[id]; !ok {
		return store.ErrNotFound
	}
	for aid, a := range s.assignments {
		if a.ServiceID == id {
			delete(s.assignments, aid)
		}
	}
	for oid, o := range s.orders {
		if o.ServiceID != nil && *o.ServiceID == id {
			o.ServiceID = nil
			s.orders[oid] = o
		}
	}
	delete(s.services, id)
	return nil
}

func (s *Store) ListAssignments(_ context.Context) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assignments := make([]domain.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		assignments = append(assignments, s.decorateAssignment(a))
	}
	slices.SortFunc(assignments, func(a, b domain.Assignment) int { return cmpInt64(a.ID, b.ID) })
	return assignments, nil
}

func (s *Store) decorateAssignment(a domain.Assignment) domain.Assignment {
	a.UserName = s.users[a.UserID].Name
	a.ServiceName = s.services[a.ServiceID].Name
	return a
}

func (s *Store) CreateAssignment(_ context.Context, userID int64, serviceID int64) (*domain.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, false, store.ErrNotFound
	}
	if _, ok := s.services[serviceID]; !ok {
		return nil, false, store.ErrNotFound
	}
	for _, a := range s.assignments {
		if a.UserID == userID && a.ServiceID == serviceID {
			existing := s.decorateAssignment(a)
			return &existing, false, nil
		}
	}

	a := domain.Assignment{ID: s.nextID(), UserID: userID, ServiceID: serviceID}
	s.assignments[a.ID] = a
	created := s.decorateAssignment(a)
	return &created, true, nil
}

func (s *Store) DeleteAssignment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

func (s *Store) ListOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, s.decorateOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int { return cmpInt64(b.ID, a.ID) })
	return orders, nil
}

func (s *Store) decorateOrder(o domain.Order) domain.Order {
	o.SellerName, o.ServiceName = "", ""
	if o.SellerID != nil {
		o.SellerName = s.users[*o.SellerID].Name
	}
	if o.ServiceID != nil {
		o.ServiceName = s.services[*o.ServiceID].Name
	}
	return o
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	decorated := s.decorateOrder(o)
	return &decorated, nil
}

func (s *Store) validateOrderRefs(order domain.Order) error {
	if order.SellerID != nil {
		if _, ok := s.users[*order.SellerID]; !ok {
			return store.ErrInvalidInput
		}
	}
	if order.ServiceID != nil {
		if _, ok := s.services[*order.ServiceID]; !ok {
			return store.ErrInvalidInput
		}
	}
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.Customer) == "" || order.Date == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateOrderRefs(order); err != nil {
		return nil, err
	}
	order.ID = s.nextID()
	if order.Status == "" {
		order.Status = domain.OrderStatusOpen
	}
	order.Stale = false
	s.orders[order.ID] = order
	created := s.decorateOrder(order)
	return &created, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.Customer) == "" || order.Date == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if err := s.validateOrderRefs(order); err != nil {
		return nil, err
	}
	order.Stale = false
	s.orders[order.ID] = order
	updated := s.decorateOrder(order)
	return &updated, nil
}

func (s *Store) mutateOrder(id int64, fn func(o *domain.Order)) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	fn(&o)
	s.orders[id] = o
	decorated := s.decorateOrder(o)
	return &decorated, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, status string) (*domain.Order, error) {
	return s.mutateOrder(id, func(o *domain.Order) { o.Status = status })
}

func (s *Store) UpdateOrderCommissionPaid(_ context.Context, id int64, paid bool) (*domain.Order, error) {
	return s.mutateOrder(id, func(o *domain.Order) { o.CommissionPaid = paid })
}

func (s *Store) UpdateOrderFinancials(_ context.Context, id int64, f domain.OrderFinancials) error {
	_, err := s.mutateOrder(id, func(o *domain.Order) {
		o.Price = f.Price
		o.Cost = f.Cost
		o.Profit = f.Profit
		o.CommissionValue = f.CommissionValue
		o.Quote = f.Quote
		o.UnitPriceUsed = f.UnitPriceUsed
	})
	return err
}

func (s *Store) UpdateOrderDates(_ context.Context, id int64, date string, launchDate string, isRetroactive bool) error {
	_, err := s.mutateOrder(id, func(o *domain.Order) {
		o.Date = date
		o.LaunchDate = launchDate
		o.IsRetroactive = isRetroactive
	})
	return err
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) FindAccount(_ context.Context, login string) (*domain.AuthAccount, error) {
	key := strings.ToLower(strings.TrimSpace(login))
	if key == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if account, ok := s.accounts[key]; ok {
		return &account, nil
	}
	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, key) {
			return &account, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpsertAccount(_ context.Context, account domain.AuthAccount) (*domain.AuthAccount, error) {
	key := strings.ToLower(strings.TrimSpace(account.Login))
	if key == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[key]
	if ok {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
		if account.PasswordHash == "" {
			account.PasswordHash = existing.PasswordHash
		}
	} else {
		if account.PasswordHash == "" {
			return nil, store.ErrInvalidInput
		}
		account.ID = s.nextID()
		account.CreatedAt = time.Now().UTC()
	}
	s.accounts[key] = account
	return &account, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
