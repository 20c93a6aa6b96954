package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
	"zenith/backoffice/internal/store"
)

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserRequest) (domain.User, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}
	user, err := userFromRequest(req)
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	if req.Password != "" {
		if err := s.saveCredentials(ctx, *created, domain.CredentialsRequest{Login: req.Login, Password: req.Password}); err != nil {
			return domain.User{}, err
		}
	}

	s.logAudit(ctx, "user_create", "user", fmt.Sprint(created.ID), fmt.Sprintf("name=%s,commission=%s", created.Name, created.Commission))
	return *created, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req domain.UserRequest) (domain.User, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}
	user, err := userFromRequest(req)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = id

	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	if req.Password != "" {
		if err := s.saveCredentials(ctx, *updated, domain.CredentialsRequest{Login: req.Login, Password: req.Password}); err != nil {
			return domain.User{}, err
		}
	}

	s.logAudit(ctx, "user_update", "user", fmt.Sprint(id), fmt.Sprintf("name=%s,commission=%s", updated.Name, updated.Commission))
	return *updated, nil
}

// UpdateCredentials creates or changes the login of a seller. An empty
// password keeps the current one.
func (s *Service) UpdateCredentials(ctx context.Context, id int64, req domain.CredentialsRequest) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.saveCredentials(ctx, *user, req); err != nil {
		return err
	}
	s.logAudit(ctx, "credentials_update", "user", fmt.Sprint(id), "login="+defaultString(req.Login, defaultString(req.Email, user.Email)))
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "user_delete", "user", fmt.Sprint(id), "")
	return nil
}

func userFromRequest(req domain.UserRequest) (domain.User, error) {
	user := domain.User{
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:  strings.TrimSpace(req.Phone),
		Role:   defaultString(req.Role, "Vendedor"),
		Status: defaultString(req.Status, domain.StatusActive),
	}
	if user.Name == "" {
		return domain.User{}, store.ErrInvalidInput
	}
	if req.Commission.Valid {
		if req.Commission.Decimal.IsNegative() || req.Commission.Decimal.GreaterThan(decimal.NewFromInt(100)) {
			return domain.User{}, store.ErrInvalidInput
		}
		user.Commission = req.Commission.Decimal
	}
	return user, nil
}

// saveCredentials upserts the auth account of a user. The login defaults to
// the given email, then the user's email, then the user's name. The access
// role is the normalized job title.
func (s *Service) saveCredentials(ctx context.Context, user domain.User, req domain.CredentialsRequest) error {
	login := strings.ToLower(defaultString(req.Login, defaultString(req.Email, defaultString(user.Email, user.Name))))
	if login == "" {
		return store.ErrInvalidInput
	}
	role := domain.NormalizeRole(defaultString(req.Role, user.Role))

	account := domain.AuthAccount{
		Login: login,
		Email: defaultString(req.Email, user.Email),
		Role:  role,
	}
	if req.Password != "" {
		if len(req.Password) < 6 {
			return fmt.Errorf("password must be at least 6 characters: %w", store.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		account.PasswordHash = string(hash)
	}

	if _, err := s.repo.UpsertAccount(ctx, account); err != nil {
		return err
	}
	return nil
}

func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.repo.ListServices(ctx)
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceRequest) (domain.Service, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Service{}, err
	}
	svc, err := serviceFromRequest(req)
	if err != nil {
		return domain.Service{}, err
	}

	created, err := s.repo.CreateService(ctx, svc)
	if err != nil {
		return domain.Service{}, err
	}
	s.logAudit(ctx, "service_create", "service", fmt.Sprint(created.ID), fmt.Sprintf("name=%s,cost_type=%s", created.Name, created.CostType))
	return *created, nil
}

func (s *Service) UpdateService(ctx context.Context, id int64, req domain.ServiceRequest) (domain.Service, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Service{}, err
	}
	svc, err := serviceFromRequest(req)
	if err != nil {
		return domain.Service{}, err
	}
	svc.ID = id

	updated, err := s.repo.UpdateService(ctx, svc)
	if err != nil {
		return domain.Service{}, err
	}
	s.logAudit(ctx, "service_update", "service", fmt.Sprint(id), fmt.Sprintf("name=%s,cost_type=%s", updated.Name, updated.CostType))
	return *updated, nil
}

func (s *Service) DeleteService(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "service_delete", "service", fmt.Sprint(id), "")
	return nil
}

func serviceFromRequest(req domain.ServiceRequest) (domain.Service, error) {
	svc := domain.Service{
		Name:        strings.TrimSpace(req.Name),
		Status:      defaultString(req.Status, domain.StatusActive),
		Description: strings.TrimSpace(req.Description),
	}
	if svc.Name == "" {
		return domain.Service{}, store.ErrInvalidInput
	}

	if strings.TrimSpace(req.CostType) != "" {
		category, ok := pricing.ParseCategory(req.CostType)
		if !ok {
			return domain.Service{}, fmt.Errorf("unknown cost type %q: %w", req.CostType, store.ErrInvalidInput)
		}
		svc.CostType = string(category)
	}
	for _, amount := range []domain.Amount{req.CostFixed, req.CostPercentage, req.Price, req.Spread} {
		if amount.Valid && amount.Decimal.IsNegative() {
			return domain.Service{}, store.ErrInvalidInput
		}
	}
	svc.CostFixed = req.CostFixed.Decimal
	svc.CostPercentage = req.CostPercentage.Decimal
	svc.Price = req.Price.Decimal
	svc.Spread = req.Spread.Null()
	return svc, nil
}

// ruleFor resolves a service's pricing rule. Unknown cost types price at zero
// cost, as the engine treats them.
func ruleFor(svc domain.Service) *pricing.Rule {
	category, ok := pricing.ParseCategory(svc.CostType)
	if !ok && svc.CostType != "" {
		log.Printf("[service] WARN: service %d has unknown cost type %q", svc.ID, svc.CostType)
	}
	return pricing.NewRule(svc.Name, category, svc.CostFixed, svc.CostPercentage, svc.Price).WithSpread(svc.Spread)
}

func (s *Service) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	return s.repo.ListAssignments(ctx)
}

func (s *Service) CreateAssignment(ctx context.Context, req domain.AssignmentRequest) (domain.AssignmentResponse, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.AssignmentResponse{}, err
	}
	if req.UserID < 1 || req.ServiceID < 1 {
		return domain.AssignmentResponse{}, store.ErrInvalidInput
	}

	assignment, created, err := s.repo.CreateAssignment(ctx, req.UserID, req.ServiceID)
	if err != nil {
		return domain.AssignmentResponse{}, err
	}
	if created {
		s.logAudit(ctx, "assignment_create", "assignment", fmt.Sprint(assignment.ID), fmt.Sprintf("user=%d,service=%d", req.UserID, req.ServiceID))
	}
	return domain.AssignmentResponse{Assignment: *assignment, Duplicate: !created}, nil
}

func (s *Service) DeleteAssignment(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteAssignment(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "assignment_delete", "assignment", fmt.Sprint(id), "")
	return nil
}
