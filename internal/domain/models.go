package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

const (
	StatusActive   = "Ativo"
	StatusInactive = "Inativo"
)

const (
	OrderStatusOpen      = "open"
	OrderStatusClosed    = "closed"
	OrderStatusCancelled = "cancelled"
)

// DateLayout is the calendar-day format used for order dates.
const DateLayout = "2006-01-02"

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Login       string `json:"login"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// AuthAccount is an internal persistence model for credentials.
type AuthAccount struct {
	ID           int64
	Login        string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type CredentialsRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// User is a seller earning commission on orders.
type User struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Role       string          `json:"role"`
	Commission decimal.Decimal `json:"commission"`
	Status     string          `json:"status"`
}

type UserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	Commission Amount `json:"commission"`
	Status     string `json:"status"`
	Login      string `json:"login"`
	Password   string `json:"password"`
}

// Service is a sellable product together with its cost rule.
type Service struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	CostType       string          `json:"cost_type"`
	CostFixed      decimal.Decimal `json:"cost_fixed"`
	CostPercentage decimal.Decimal `json:"cost_percentage"`
	Price          decimal.Decimal `json:"price"`
	Status         string          `json:"status"`
	Description    string          `json:"description"`

	// Spread overrides the remittance or USDT spread when set, zero included.
	Spread decimal.NullDecimal `json:"spread"`
}

type ServiceRequest struct {
	Name           string `json:"name"`
	CostType       string `json:"cost_type"`
	CostFixed      Amount `json:"cost_fixed"`
	CostPercentage Amount `json:"cost_percentage"`
	Price          Amount `json:"price"`
	Status         string `json:"status"`
	Description    string `json:"description"`
	Spread         Amount `json:"spread"`
}

type Assignment struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	ServiceID   int64  `json:"service_id"`
	UserName    string `json:"user_name,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

type AssignmentRequest struct {
	UserID    int64 `json:"user_id"`
	ServiceID int64 `json:"service_id"`
}

type AssignmentResponse struct {
	Assignment Assignment `json:"assignment"`
	Duplicate  bool       `json:"duplicate"`
}

// Order is a sale. Price, cost, profit, commission and the unit price used
// are derived from the pricing engine and persisted rounded to cents.
// UnitPrice and DeclaredPrice hold only what the caller entered, so pricing
// an order again never feeds on its own output.
type Order struct {
	ID              int64               `json:"id"`
	Customer        string              `json:"customer"`
	SellerID        *int64              `json:"seller_id"`
	ServiceID       *int64              `json:"service_id"`
	ProductType     string              `json:"product_type"`
	Quantity        decimal.Decimal     `json:"quantity"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	Quote           decimal.NullDecimal `json:"quote"`
	HistoricalQuote decimal.NullDecimal `json:"historical_quote"`
	InvoiceUSD      decimal.NullDecimal `json:"invoice_usd"`
	DeclaredPrice   decimal.NullDecimal `json:"declared_price"`
	UnitPriceUsed   decimal.NullDecimal `json:"unit_price_used"`
	Price           decimal.Decimal     `json:"price"`
	Cost            decimal.Decimal     `json:"cost"`
	Profit          decimal.Decimal     `json:"profit"`
	CommissionValue decimal.Decimal     `json:"commission_value"`
	Date            string              `json:"date"`
	LaunchDate      string              `json:"launch_date,omitempty"`
	IsRetroactive   bool                `json:"is_retroactive"`
	Status          string              `json:"status"`
	CommissionPaid  bool                `json:"commission_paid"`
	SellerName      string              `json:"seller_name,omitempty"`
	ServiceName     string              `json:"service_name,omitempty"`
	// Stale is set on listings when the figures could not be recomputed and
	// the persisted values are shown instead.
	Stale bool `json:"stale,omitempty"`
}

// OrderRequest carries order fields for create and patch. Absent fields are
// left untouched on patch.
type OrderRequest struct {
	Customer        *string `json:"customer"`
	SellerID        *int64  `json:"seller_id"`
	ServiceID       *int64  `json:"service_id"`
	ProductType     *string `json:"product_type"`
	Quantity        Amount  `json:"quantity"`
	UnitPrice       Amount  `json:"unit_price"`
	Price           Amount  `json:"price"`
	Cost            Amount  `json:"cost"`
	InvoiceUSD      Amount  `json:"invoice_usd"`
	HistoricalQuote Amount  `json:"historical_quote"`
	Date            *string `json:"date"`
	Status          *string `json:"status"`
	CommissionPaid  *bool   `json:"commission_paid"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type CommissionPaidRequest struct {
	CommissionPaid bool `json:"commission_paid"`
}

// OrderFinancials is what a recomputation writes back to an order.
type OrderFinancials struct {
	Price           decimal.Decimal
	Cost            decimal.Decimal
	Profit          decimal.Decimal
	CommissionValue decimal.Decimal
	Quote           decimal.NullDecimal
	UnitPriceUsed   decimal.NullDecimal
}

type RecalculateResponse struct {
	Total   int      `json:"total"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// RetroFixOptions drives the launch-date maintenance job.
type RetroFixOptions struct {
	DryRun    bool
	ShiftDays int
	Shift     bool
}

type RetroFixChange struct {
	OrderID          int64  `json:"order_id"`
	Date             string `json:"date"`
	NewDate          string `json:"new_date,omitempty"`
	LaunchDate       string `json:"launch_date"`
	WasRetroactive   bool   `json:"was_retroactive"`
	IsRetroactive    bool   `json:"is_retroactive"`
	LaunchDateFilled bool   `json:"launch_date_filled,omitempty"`
}

type RetroFixReport struct {
	DryRun  bool             `json:"dry_run"`
	Scanned int              `json:"scanned"`
	Changes []RetroFixChange `json:"changes"`
}

type QuoteSnapshot struct {
	Value     decimal.Decimal `json:"value"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type SellerSummary struct {
	SellerID         int64           `json:"seller_id"`
	SellerName       string          `json:"seller_name"`
	Orders           int             `json:"orders"`
	Revenue          decimal.Decimal `json:"revenue"`
	Profit           decimal.Decimal `json:"profit"`
	Commission       decimal.Decimal `json:"commission"`
	CommissionUnpaid decimal.Decimal `json:"commission_unpaid"`
}

type DashboardSummary struct {
	Orders           int             `json:"orders"`
	Revenue          decimal.Decimal `json:"revenue"`
	Cost             decimal.Decimal `json:"cost"`
	Profit           decimal.Decimal `json:"profit"`
	Commission       decimal.Decimal `json:"commission"`
	CommissionPaid   decimal.Decimal `json:"commission_paid"`
	CommissionUnpaid decimal.Decimal `json:"commission_unpaid"`
	BySeller         []SellerSummary `json:"by_seller"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

type AuditLog struct {
	ID            int64     `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
