package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionDirection is the sign of a balance movement.
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

func (d TransactionDirection) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// TransactionStatus represents the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is an immutable ledger entry. Every wallet balance change has
// exactly one, written in the same database transaction as the change.
type Transaction struct {
	ID            uuid.UUID            `json:"id"`
	UserID        uuid.UUID            `json:"user_id"`
	WalletID      uuid.UUID            `json:"wallet_id"`
	Direction     TransactionDirection `json:"type"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency"`
	Description   string               `json:"description"`
	Reference     string               `json:"reference"`
	Status        TransactionStatus    `json:"status"`
	PaymentMethod PaymentMethod        `json:"payment_method"`
	BalanceBefore decimal.Decimal      `json:"balance_before"`
	BalanceAfter  decimal.Decimal      `json:"balance_after"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Balanced reports whether the snapshots agree with direction and amount.
func (t *Transaction) Balanced() bool {
	switch t.Direction {
	case DirectionCredit:
		return t.BalanceAfter.Equal(t.BalanceBefore.Add(t.Amount))
	case DirectionDebit:
		return t.BalanceAfter.Equal(t.BalanceBefore.Sub(t.Amount))
	default:
		return false
	}
}
