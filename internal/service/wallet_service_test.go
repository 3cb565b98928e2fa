package service

import (
	"context"
	"sync"
	"testing"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_GetOrCreate(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	first, err := m.wallets.GetOrCreate(ctx, m.customer.ID)
	require.NoError(t, err)
	assert.True(t, first.Balance.IsZero())
	assert.Equal(t, "ZAR", first.Currency)

	second, err := m.wallets.GetOrCreate(ctx, m.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestWalletService_GetOrCreate_UnknownUser(t *testing.T) {
	m := newMarketplace(t)

	_, err := m.wallets.GetOrCreate(context.Background(), uuid.New())
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	assert.Equal(t, 0, m.store.Stats().Wallets)
}

func TestWalletService_GetByUser_NoWallet(t *testing.T) {
	m := newMarketplace(t)

	_, err := m.wallets.GetByUser(context.Background(), m.customer.ID)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestWalletService_CreditThenDebit_ChainsBalances(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 0)
	ctx := context.Background()

	credit, err := m.wallets.Credit(ctx, ports.WalletMutation{
		WalletID: w.ID, Amount: dec("100"), Description: "Wallet reload", Reference: "reload-1",
	})
	require.NoError(t, err)
	assert.True(t, credit.BalanceBefore.IsZero())
	assert.True(t, credit.BalanceAfter.Equal(dec("100")))
	assert.Equal(t, domain.TransactionStatusSuccess, credit.Status)
	assert.Equal(t, domain.PaymentMethodWallet, credit.PaymentMethod)

	debit, err := m.wallets.Debit(ctx, ports.WalletMutation{
		WalletID: w.ID, Amount: dec("30.25"), Description: "Wallet deduction", Reference: "debit-1",
	})
	require.NoError(t, err)
	assert.True(t, debit.BalanceBefore.Equal(credit.BalanceAfter))
	assert.True(t, debit.BalanceAfter.Equal(dec("69.75")))
	assert.True(t, debit.Balanced())

	assert.True(t, m.balance(t).Equal(dec("69.75")))
}

func TestWalletService_Debit_InsufficientFundsIsNoOp(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 50)
	ctx := context.Background()
	before := m.store.Stats().Transactions

	_, err := m.wallets.Debit(ctx, ports.WalletMutation{
		WalletID: w.ID, Amount: dec("119.5"), Reference: "debit-too-much",
	})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeInsufficientFunds, appErr.Code)
	assert.True(t, appErr.Details["shortfall"].(decimal.Decimal).Equal(dec("69.5")))
	assert.True(t, appErr.Details["available"].(decimal.Decimal).Equal(dec("50")))

	assert.True(t, m.balance(t).Equal(dec("50")))
	assert.Equal(t, before, m.store.Stats().Transactions)
}

func TestWalletService_Debit_ExactBalanceAllowed(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 40)

	_, err := m.wallets.Debit(context.Background(), ports.WalletMutation{
		WalletID: w.ID, Amount: dec("40"), Reference: "debit-all",
	})
	require.NoError(t, err)
	assert.True(t, m.balance(t).IsZero())
}

func TestWalletService_RejectsBadInput(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 10)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ports.WalletMutation
		code string
	}{
		{"zero amount", ports.WalletMutation{WalletID: w.ID, Amount: decimal.Zero, Reference: "r"}, apperror.CodeInvalidAmount},
		{"negative amount", ports.WalletMutation{WalletID: w.ID, Amount: dec("-1"), Reference: "r"}, apperror.CodeInvalidAmount},
		{"sub-cent amount", ports.WalletMutation{WalletID: w.ID, Amount: dec("0.001"), Reference: "r"}, apperror.CodeInvalidAmount},
		{"missing reference", ports.WalletMutation{WalletID: w.ID, Amount: dec("1")}, apperror.CodeValidation},
		{"unknown wallet", ports.WalletMutation{WalletID: uuid.New(), Amount: dec("1"), Reference: "r"}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.wallets.Credit(ctx, tt.req)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
	assert.True(t, m.balance(t).Equal(dec("10")))
}

func TestWalletService_Debit_SubCentAmountLeavesLedgerUntouched(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 1)
	ctx := context.Background()

	_, err := m.wallets.Debit(ctx, ports.WalletMutation{WalletID: w.ID, Amount: dec("0.005"), Reference: "half-cent"})
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(err))
	assert.True(t, m.balance(t).Equal(dec("1")))
	assert.Equal(t, 1, m.store.Stats().Transactions)

	// Trailing zeros are still whole cents.
	txn, err := m.wallets.Debit(ctx, ports.WalletMutation{WalletID: w.ID, Amount: dec("0.500"), Reference: "fifty-cents"})
	require.NoError(t, err)
	assert.True(t, txn.BalanceAfter.Equal(dec("0.5")))
	assert.True(t, txn.BalanceBefore.Sub(txn.Amount).Equal(txn.BalanceAfter))
}

func TestWalletService_DuplicateReferenceRejected(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 0)
	ctx := context.Background()
	req := ports.WalletMutation{WalletID: w.ID, Amount: dec("25"), Reference: "paystack_ref_1"}

	_, err := m.wallets.Credit(ctx, req)
	require.NoError(t, err)
	_, err = m.wallets.Credit(ctx, req)
	assert.True(t, apperror.Is(err, apperror.CodeDuplicateRef))
	assert.True(t, m.balance(t).Equal(dec("25")))
}

func TestWalletService_InactiveWallet(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 0)
	frozen := *w
	frozen.IsActive = false
	m.store.PutWallet(frozen)

	_, err := m.wallets.Credit(context.Background(), ports.WalletMutation{WalletID: w.ID, Amount: dec("5"), Reference: "r"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestWalletService_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 100)
	ctx := context.Background()

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.wallets.Debit(ctx, ports.WalletMutation{
				WalletID: w.ID, Amount: dec("10"), Reference: domain.DeductReference(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperror.Is(err, apperror.CodeInsufficientFunds) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, workers-10, rejected)
	assert.True(t, m.balance(t).IsZero())
}

func TestWalletService_ListTransactions(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 100)
	ctx := context.Background()
	_, err := m.wallets.Debit(ctx, ports.WalletMutation{WalletID: w.ID, Amount: dec("10"), Reference: "d1"})
	require.NoError(t, err)

	all, total, err := m.wallets.ListTransactions(ctx, ports.TransactionListParams{WalletID: w.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	debit := domain.DirectionDebit
	debits, total, err := m.wallets.ListTransactions(ctx, ports.TransactionListParams{WalletID: w.ID, Direction: &debit})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "d1", debits[0].Reference)

	bogus := domain.TransactionDirection("refund")
	_, _, err = m.wallets.ListTransactions(ctx, ports.TransactionListParams{WalletID: w.ID, Direction: &bogus})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
