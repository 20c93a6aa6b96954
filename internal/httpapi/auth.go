package httpapi

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/store"
)

const sessionCookieName = "zenith_session"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errMissingCredentials = errors.New("login and password are required")
)

// AccountStore is the credential storage the auth manager reads and upgrades.
type AccountStore interface {
	FindAccount(ctx context.Context, login string) (*domain.AuthAccount, error)
	UpsertAccount(ctx context.Context, account domain.AuthAccount) (*domain.AuthAccount, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	accounts AccountStore
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, accounts AccountStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		accounts: accounts,
	}
}

// Login checks a login (or email) and password against the account store and
// issues a signed session token. Legacy accounts holding a plain-text
// password are upgraded to a bcrypt hash on their first successful login.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		return domain.LoginResponse{}, errMissingCredentials
	}

	account, err := a.accounts.FindAccount(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}

	if !isPasswordHash(account.PasswordHash) {
		if account.PasswordHash == "" || account.PasswordHash != req.Password {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		a.upgradePassword(ctx, *account, req.Password)
	} else if !verifyPassword(account.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	role := domain.NormalizeRole(account.Role)
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(account.Login, role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        role,
		Login:       account.Login,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) upgradePassword(ctx context.Context, account domain.AuthAccount, password string) {
	hashed, err := hashPassword(password)
	if err != nil {
		log.Printf("[auth] WARN: failed to hash legacy password for %s: %v", account.Login, err)
		return
	}
	account.PasswordHash = hashed
	if _, err := a.accounts.UpsertAccount(ctx, account); err != nil {
		log.Printf("[auth] WARN: failed to upgrade legacy password for %s: %v", account.Login, err)
	}
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(login, role string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "zenith-backoffice",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) TokenTTL() time.Duration {
	return a.tokenTTL
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
