package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/store"
)

type accountStoreStub struct {
	mu       sync.Mutex
	accounts map[string]domain.AuthAccount
	upserts  int
}

func (s *accountStoreStub) FindAccount(_ context.Context, login string) (*domain.AuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(login)
	for _, account := range s.accounts {
		if strings.ToLower(account.Login) == key || strings.ToLower(account.Email) == key {
			found := account
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *accountStoreStub) UpsertAccount(_ context.Context, account domain.AuthAccount) (*domain.AuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Login] = account
	s.upserts++
	return &account, nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	accounts := &accountStoreStub{
		accounts: map[string]domain.AuthAccount{
			"ana": {Login: "ana", Email: "ana@zenith.local", PasswordHash: "legacy123", Role: "gerente"},
		},
	}
	auth := NewAuthManager("test-secret", time.Hour, accounts)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Login: "ana", Password: "legacy123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleManager {
		t.Fatalf("expected legacy gerente role to map to manager, got %s", resp.Role)
	}
	if accounts.upserts != 1 {
		t.Fatalf("expected password upgrade to be persisted once, got %d", accounts.upserts)
	}
	if !isPasswordHash(accounts.accounts["ana"].PasswordHash) {
		t.Fatalf("expected stored password to be hashed")
	}

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Login: "ANA@zenith.local", Password: "legacy123"}); err != nil {
		t.Fatalf("login by email after upgrade failed: %v", err)
	}
	if accounts.upserts != 1 {
		t.Fatalf("expected no further upgrades, got %d", accounts.upserts)
	}
}

func TestAuthManagerRejectsBadCredentials(t *testing.T) {
	hash, err := hashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	accounts := &accountStoreStub{
		accounts: map[string]domain.AuthAccount{
			"admin": {Login: "admin", PasswordHash: hash, Role: domain.RoleAdmin},
		},
	}
	auth := NewAuthManager("test-secret", time.Hour, accounts)

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Login: "admin", Password: "wrong"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Login: "ghost", Password: "whatever"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown login, got %v", err)
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Login: " ", Password: ""}); !errors.Is(err, errMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("test-secret", time.Hour, &accountStoreStub{accounts: map[string]domain.AuthAccount{}})

	token, err := auth.sign("admin", domain.RoleAdmin, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other := NewAuthManager("another-secret", time.Hour, nil)
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	expired, _ := auth.sign("admin", domain.RoleAdmin, time.Now().Add(-time.Minute))
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
