package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no wallet currency is configured.
const DefaultCurrency = "ZAR"

// Wallet holds a user's spendable balance. There is exactly one per user.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewWallet returns an empty active wallet for userID.
func NewWallet(userID uuid.UUID, currency string, now time.Time) *Wallet {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether the balance covers amount.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// Shortfall is how much amount exceeds the balance, or zero.
func (w *Wallet) Shortfall(amount decimal.Decimal) decimal.Decimal {
	if w.CanDebit(amount) {
		return decimal.Zero
	}
	return amount.Sub(w.Balance)
}

// BalanceAfter computes the post-mutation balance for direction and amount.
func (w *Wallet) BalanceAfter(direction TransactionDirection, amount decimal.Decimal) decimal.Decimal {
	if direction == DirectionDebit {
		return w.Balance.Sub(amount)
	}
	return w.Balance.Add(amount)
}

// IsWholeCents reports whether amount has no precision below one cent, which
// is what the NUMERIC(14,2) money columns can hold without rounding.
func IsWholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}
