package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/pkg/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repositories return (nil, nil) when a single-row lookup finds nothing.
// Methods accepting pgx.Tx run inside a caller-owned transaction; the
// ...ForUpdate variants hold a row lock until that transaction ends.

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	// CreateIfAbsent inserts w unless the user already has a wallet, and
	// returns whichever wallet is stored for w.UserID.
	CreateIfAbsent(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// TransactionRepository is the append-only ledger.
type TransactionRepository interface {
	// Create fails with apperror DuplicateReference when the reference exists.
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	ExistsByReference(ctx context.Context, tx pgx.Tx, reference string) (bool, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for a wallet's ledger.
type TransactionListParams struct {
	WalletID  uuid.UUID
	Direction *domain.TransactionDirection
	Page      int
	PageSize  int
}

type OrderRepository interface {
	// Create fails if the order number, or the customer's idempotency key, is already taken.
	Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*domain.Order, error)
	// Update persists the mutable lifecycle and payment fields of o.
	Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
}

// OrderListParams filters orders by customer or shop. Exactly one of
// CustomerID and ShopID is set.
type OrderListParams struct {
	CustomerID *uuid.UUID
	ShopID     *uuid.UUID
	Status     *domain.OrderStatus
	Page       int
	PageSize   int
}

type ShopRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Shop, error)
	// FindWithinRadius returns active shops within radiusMeters of p.
	FindWithinRadius(ctx context.Context, p geo.Point, radiusMeters float64) ([]domain.Shop, error)
	DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type MenuItemRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.MenuItem, error)
	DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
