package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Wallets ---

type WalletRepo struct{ s *Store }

func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

func (r *WalletRepo) CreateIfAbsent(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error) {
	var stored domain.Wallet
	err := r.s.autocommit(ctx, func() error {
		for _, existing := range r.s.wallets {
			if existing.UserID == w.UserID {
				stored = existing
				return nil
			}
		}
		r.s.wallets[w.ID] = *w
		stored = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.get(nil, id)
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, w := range r.s.read(nil).wallets {
		if w.UserID == userID {
			return &w, nil
		}
	}
	return nil, nil
}

// GetByIDForUpdate relies on the caller's transaction holding the store lock.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.get(tx, id)
}

func (r *WalletRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.read(tx).wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet %s not found", walletID)
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	r.s.wallets[walletID] = w
	return nil
}

// --- Ledger ---

type TransactionRepo struct{ s *Store }

func NewTransactionRepo(s *Store) *TransactionRepo { return &TransactionRepo{s: s} }

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.transactions {
		if existing.Reference == t.Reference {
			return apperror.ErrDuplicateReference()
		}
	}
	r.s.transactions = append(r.s.transactions, *t)
	return nil
}

func (r *TransactionRepo) ExistsByReference(ctx context.Context, tx pgx.Tx, reference string) (bool, error) {
	found, err := r.find(tx, reference)
	return found != nil, err
}

func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return r.find(nil, reference)
}

func (r *TransactionRepo) find(tx pgx.Tx, reference string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.read(tx).transactions {
		if t.Reference == reference {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	var matched []domain.Transaction
	for _, t := range r.s.read(nil).transactions {
		if t.WalletID != params.WalletID {
			continue
		}
		if params.Direction != nil && t.Direction != *params.Direction {
			continue
		}
		matched = append(matched, t)
	}
	r.s.mu.RUnlock()

	// Newest first; insertion order breaks timestamp ties.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, params.Page, params.PageSize), int64(len(matched)), nil
}

// --- Orders ---

type OrderRepo struct{ s *Store }

func NewOrderRepo(s *Store) *OrderRepo { return &OrderRepo{s: s} }

func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return fmt.Errorf("order number %s already exists", o.OrderNumber)
		}
		if o.IdempotencyKey != "" && existing.CustomerID == o.CustomerID && existing.IdempotencyKey == o.IdempotencyKey {
			return fmt.Errorf("idempotency key %s already used", o.IdempotencyKey)
		}
	}
	r.s.orders[o.ID] = *o
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.get(nil, id)
}

func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.get(tx, id)
}

func (r *OrderRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.read(tx).orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *OrderRepo) GetByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.read(nil).orders {
		if o.CustomerID == customerID && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; !ok {
		return fmt.Errorf("order %s not found", o.ID)
	}
	r.s.orders[o.ID] = *o
	return nil
}

func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	r.s.mu.RLock()
	var matched []domain.Order
	for _, o := range r.s.read(nil).orders {
		if params.CustomerID != nil && o.CustomerID != *params.CustomerID {
			continue
		}
		if params.ShopID != nil && o.ShopID != *params.ShopID {
			continue
		}
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		matched = append(matched, o)
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].OrderNumber > matched[j].OrderNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, params.Page, params.PageSize), int64(len(matched)), nil
}

// --- Catalog ---

type ShopRepo struct{ s *Store }

func NewShopRepo(s *Store) *ShopRepo { return &ShopRepo{s: s} }

func (r *ShopRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	shop, ok := r.s.shops[id]
	if !ok {
		return nil, nil
	}
	return &shop, nil
}

// FindWithinRadius returns active shops nearest first, like a KNN index scan.
func (r *ShopRepo) FindWithinRadius(ctx context.Context, p geo.Point, radiusMeters float64) ([]domain.Shop, error) {
	type hit struct {
		shop domain.Shop
		km   float64
	}

	r.s.mu.RLock()
	var hits []hit
	for _, shop := range r.s.shops {
		if !shop.IsActive {
			continue
		}
		km := geo.DistanceKm(p, shop.Location)
		if km*1000 <= radiusMeters {
			hits = append(hits, hit{shop: shop, km: km})
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].km < hits[j].km })

	shops := make([]domain.Shop, len(hits))
	for i, h := range hits {
		shops[i] = h.shop
	}
	return shops, nil
}

// DeleteDeactivatedBefore removes inactive shops and their menu items.
func (r *ShopRepo) DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.s.autocommit(ctx, func() error {
		for id, shop := range r.s.shops {
			if !shop.IsActive && deactivatedBy(shop.DeactivatedAt, cutoff) {
				delete(r.s.shops, id)
				for miID, mi := range r.s.menuItems {
					if mi.ShopID == id {
						delete(r.s.menuItems, miID)
					}
				}
				n++
			}
		}
		return nil
	})
	return n, err
}

type MenuItemRepo struct{ s *Store }

func NewMenuItemRepo(s *Store) *MenuItemRepo { return &MenuItemRepo{s: s} }

func (r *MenuItemRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.MenuItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := make([]domain.MenuItem, 0, len(ids))
	for _, id := range ids {
		if mi, ok := r.s.menuItems[id]; ok {
			items = append(items, mi)
		}
	}
	return items, nil
}

func (r *MenuItemRepo) DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.s.autocommit(ctx, func() error {
		for id, mi := range r.s.menuItems {
			if !mi.IsAvailable && deactivatedBy(mi.DeactivatedAt, cutoff) {
				delete(r.s.menuItems, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type UserRepo struct{ s *Store }

func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.s.autocommit(ctx, func() error {
		for id, u := range r.s.users {
			if !u.IsActive && deactivatedBy(u.DeactivatedAt, cutoff) {
				delete(r.s.users, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// --- Audit ---

type AuditRepo struct{ s *Store }

func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

func deactivatedBy(at *time.Time, cutoff time.Time) bool {
	return at != nil && !at.After(cutoff)
}

func page[T any](rows []T, pageNum, size int) []T {
	if size <= 0 {
		return rows
	}
	start := (pageNum - 1) * size
	if start < 0 || start >= len(rows) {
		return []T{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
