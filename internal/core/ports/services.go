package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/pkg/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Infrastructure Ports ---

// SignatureService signs and verifies payloads with a shared secret.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// TokenService issues and validates admin bearer tokens.
type TokenService interface {
	Generate(subject string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// IdempotencyCache stores serialized results keyed by a client idempotency key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ProcessedEventStore de-duplicates inbound gateway events.
type ProcessedEventStore interface {
	// CheckAndSet returns true if key was not seen before and is now claimed.
	CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so that a failed event can be redelivered.
	Release(ctx context.Context, key string) error
}

// PaymentGateway is the external card-payment provider.
type PaymentGateway interface {
	Initialize(ctx context.Context, req GatewayInitRequest) (*GatewayCheckout, error)
	Verify(ctx context.Context, reference string) (*GatewayVerification, error)
}

// GatewayInitRequest carries a major-unit amount; the adapter converts to minor units.
type GatewayInitRequest struct {
	Email       string
	Amount      decimal.Decimal
	Metadata    map[string]any
	CallbackURL string
}

type GatewayCheckout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type GatewayVerification struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel,omitempty"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// EventPublisher emits order lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

// --- Service Ports (Business Logic) ---

// PricingEngine prices order lines against resolved menu items. It has no side effects.
type PricingEngine interface {
	Price(lines []OrderLine, menu map[uuid.UUID]domain.MenuItem) (*domain.PriceBreakdown, error)
}

// OrderLine is one requested line of an order.
type OrderLine struct {
	MenuItemID     uuid.UUID
	Quantity       int
	Customizations []domain.Customization
}

// WalletService owns every balance mutation.
type WalletService interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	Credit(ctx context.Context, req WalletMutation) (*domain.Transaction, error)
	Debit(ctx context.Context, req WalletMutation) (*domain.Transaction, error)
	// CreditTx and DebitTx join a transaction owned by the caller.
	CreditTx(ctx context.Context, tx pgx.Tx, req WalletMutation) (*domain.Transaction, error)
	DebitTx(ctx context.Context, tx pgx.Tx, req WalletMutation) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// WalletMutation holds validated input for a credit or debit.
type WalletMutation struct {
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	Description   string
	Reference     string
	PaymentMethod domain.PaymentMethod
	Metadata      map[string]any
}

type OrderService interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error)
	// SetPaymentReference records the gateway reference of a pending checkout.
	SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) (*domain.Order, error)
	// MarkPaid settles an order paid out-of-band; repeated calls are no-ops.
	MarkPaid(ctx context.Context, id uuid.UUID, reference string) (*domain.Order, error)
}

// PlaceOrderRequest holds input for order placement.
type PlaceOrderRequest struct {
	CustomerID           uuid.UUID
	ShopID               uuid.UUID
	Items                []OrderLine
	DeliveryAddress      *domain.Address
	DeliveryInstructions string
	Notes                string
	PaymentMethod        domain.PaymentMethod
	IdempotencyKey       string
}

type ShopService interface {
	SearchNearby(ctx context.Context, q NearbyQuery) ([]domain.ShopWithDistance, error)
}

// NearbyQuery is a radius search. RadiusMeters <= 0 selects the default radius.
type NearbyQuery struct {
	Point          geo.Point
	RadiusMeters   float64
	SortByDistance bool
}

type PaymentService interface {
	InitializePayment(ctx context.Context, req GatewayInitRequest) (*GatewayCheckout, error)
	VerifyPayment(ctx context.Context, reference string) (*GatewayVerification, error)
	InitializeOrderPayment(ctx context.Context, req OrderPaymentRequest) (*GatewayCheckout, error)
	InitializeWalletReload(ctx context.Context, req WalletReloadRequest) (*GatewayCheckout, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type OrderPaymentRequest struct {
	OrderID     uuid.UUID
	Email       string
	CallbackURL string
}

type WalletReloadRequest struct {
	UserID      uuid.UUID
	Email       string
	Amount      decimal.Decimal
	CallbackURL string
}

// CleanupService purges records deactivated beyond their retention window.
type CleanupService interface {
	CleanupShops(ctx context.Context) (*domain.CleanupResult, error)
	CleanupMenuItems(ctx context.Context) (*domain.CleanupResult, error)
	CleanupUsers(ctx context.Context) (*domain.CleanupResult, error)
	CleanupAll(ctx context.Context) ([]domain.CleanupResult, error)
}

// AuditService records audit trail entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
