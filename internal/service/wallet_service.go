package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService. Every mutation locks the
// wallet row, so the balance check, the update and the ledger insert for one
// wallet are serialized and commit together.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	userRepo   ports.UserRepository
	transactor ports.DBTransactor
	cfg        config.WalletConfig
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	userRepo ports.UserRepository,
	transactor ports.DBTransactor,
	cfg config.WalletConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		userRepo:   userRepo,
		transactor: transactor,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the user's wallet, creating an empty one on first access.
func (s *WalletServiceImpl) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}

	fresh := domain.NewWallet(userID, s.cfg.DefaultCurrency, s.now())
	wallet, err = s.walletRepo.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if wallet.ID == fresh.ID {
		s.log.Info().
			Str("wallet_id", wallet.ID.String()).
			Str("user_id", userID.String()).
			Msg("wallet created")
	}
	return wallet, nil
}

// GetByUser returns the user's wallet without creating one.
func (s *WalletServiceImpl) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return wallet, nil
}

func (s *WalletServiceImpl) Credit(ctx context.Context, req ports.WalletMutation) (*domain.Transaction, error) {
	return s.mutate(ctx, nil, domain.DirectionCredit, req)
}

func (s *WalletServiceImpl) Debit(ctx context.Context, req ports.WalletMutation) (*domain.Transaction, error) {
	return s.mutate(ctx, nil, domain.DirectionDebit, req)
}

func (s *WalletServiceImpl) CreditTx(ctx context.Context, tx pgx.Tx, req ports.WalletMutation) (*domain.Transaction, error) {
	return s.mutate(ctx, tx, domain.DirectionCredit, req)
}

func (s *WalletServiceImpl) DebitTx(ctx context.Context, tx pgx.Tx, req ports.WalletMutation) (*domain.Transaction, error) {
	return s.mutate(ctx, tx, domain.DirectionDebit, req)
}

// ListTransactions returns a page of the wallet's ledger, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Direction != nil && !params.Direction.IsValid() {
		return nil, 0, apperror.Validation("type must be credit or debit")
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize, s.cfg.PageSize)

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// mutate runs one credit or debit. With a nil tx it owns its own transaction.
func (s *WalletServiceImpl) mutate(ctx context.Context, tx pgx.Tx, dir domain.TransactionDirection, req ports.WalletMutation) (*domain.Transaction, error) {
	txn, err := s.mutateInTx(ctx, tx, dir, req)
	if err != nil {
		s.metrics.WalletMutation(string(dir), outcomeOf(err))
		return nil, err
	}
	s.metrics.WalletMutation(string(dir), "success")

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", txn.WalletID.String()).
		Str("direction", string(dir)).
		Str("amount", txn.Amount.String()).
		Str("reference", txn.Reference).
		Msg("wallet balance updated")

	return txn, nil
}

func (s *WalletServiceImpl) mutateInTx(ctx context.Context, tx pgx.Tx, dir domain.TransactionDirection, req ports.WalletMutation) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() || !domain.IsWholeCents(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, apperror.Validation("reference is required")
	}

	if tx != nil {
		return s.apply(ctx, tx, dir, req)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.apply(ctx, dbTx, dir, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return txn, nil
}

func (s *WalletServiceImpl) apply(ctx context.Context, tx pgx.Tx, dir domain.TransactionDirection, req ports.WalletMutation) (*domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, req.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	if !wallet.IsActive {
		return nil, apperror.Validation("wallet is inactive")
	}

	exists, err := s.txRepo.ExistsByReference(ctx, tx, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check reference: %w", err))
	}
	if exists {
		return nil, apperror.ErrDuplicateReference()
	}

	if dir == domain.DirectionDebit && !wallet.CanDebit(req.Amount) {
		return nil, apperror.ErrInsufficientFunds().WithDetails(map[string]any{
			"available": wallet.Balance,
			"required":  req.Amount,
			"shortfall": wallet.Shortfall(req.Amount),
		})
	}

	before := wallet.Balance
	after := wallet.BalanceAfter(dir, req.Amount)

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, after); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodWallet
	}

	txn := &domain.Transaction{
		ID:            uuid.New(),
		UserID:        wallet.UserID,
		WalletID:      wallet.ID,
		Direction:     dir,
		Amount:        req.Amount,
		Currency:      wallet.Currency,
		Description:   req.Description,
		Reference:     req.Reference,
		Status:        domain.TransactionStatusSuccess,
		PaymentMethod: method,
		BalanceBefore: before,
		BalanceAfter:  after,
		Metadata:      req.Metadata,
		CreatedAt:     s.now(),
	}
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, internalUnlessApp(err, "create transaction")
	}

	return txn, nil
}
