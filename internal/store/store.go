package store

import (
	"context"
	"errors"
	"time"

	"zenith/backoffice/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	Ping(ctx context.Context) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	// DeleteUser removes the user's assignments and detaches its orders.
	DeleteUser(ctx context.Context, id int64) error

	ListServices(ctx context.Context) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	CreateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (*domain.Service, error)
	// DeleteService removes the service's assignments and detaches its orders.
	DeleteService(ctx context.Context, id int64) error

	ListAssignments(ctx context.Context) ([]domain.Assignment, error)
	// CreateAssignment is idempotent; created is false when the pair already existed.
	CreateAssignment(ctx context.Context, userID int64, serviceID int64) (assignment *domain.Assignment, created bool, err error)
	DeleteAssignment(ctx context.Context, id int64) error

	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error)
	UpdateOrderCommissionPaid(ctx context.Context, id int64, paid bool) (*domain.Order, error)
	UpdateOrderFinancials(ctx context.Context, id int64, financials domain.OrderFinancials) error
	UpdateOrderDates(ctx context.Context, id int64, date string, launchDate string, isRetroactive bool) error
	DeleteOrder(ctx context.Context, id int64) error

	// FindAccount matches login or email, case-insensitively.
	FindAccount(ctx context.Context, login string) (*domain.AuthAccount, error)
	// UpsertAccount keys on login. An empty PasswordHash keeps the stored one.
	UpsertAccount(ctx context.Context, account domain.AuthAccount) (*domain.AuthAccount, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
