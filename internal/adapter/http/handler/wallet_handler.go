package handler

import (
	"shipa-backend/internal/adapter/http/dto"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultReloadDescription = "Wallet reload"
	defaultDeductDescription = "Wallet deduction"
)

// WalletHandler handles wallet endpoints keyed by the owning user.
type WalletHandler struct {
	walletSvc ports.WalletService
}

func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetOrCreate handles GET /api/v1/wallet/:userId.
func (h *WalletHandler) GetOrCreate(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// GetBalance handles GET /api/v1/wallet/:userId/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WalletBalanceResponse{Balance: wallet.Balance, Currency: wallet.Currency})
}

// Reload handles POST /api/v1/wallet/:userId/reload. A supplied payment
// reference doubles as the ledger reference.
func (h *WalletHandler) Reload(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req dto.WalletReloadRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	reference := req.PaymentReference
	if reference == "" {
		reference = domain.ReloadReference()
	}
	txn, err := h.walletSvc.Credit(c.Request.Context(), ports.WalletMutation{
		WalletID:    wallet.ID,
		Amount:      req.Amount,
		Description: orDefault(req.Description, defaultReloadDescription),
		Reference:   reference,
		Metadata:    map[string]any{"userId": userID.String()},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, txn)
}

// Deduct handles POST /api/v1/wallet/:userId/deduct.
func (h *WalletHandler) Deduct(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req dto.WalletDeductRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.GetByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	txn, err := h.walletSvc.Debit(c.Request.Context(), ports.WalletMutation{
		WalletID:    wallet.ID,
		Amount:      req.Amount,
		Description: orDefault(req.Description, defaultDeductDescription),
		Reference:   domain.DeductReference(),
		Metadata:    map[string]any{"userId": userID.String()},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, txn)
}

// ListTransactions handles GET /api/v1/wallet/:userId/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var q dto.TransactionListQuery
	if !bindQuery(c, &q) {
		return
	}

	wallet, err := h.walletSvc.GetByUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	params := ports.TransactionListParams{WalletID: wallet.ID, Page: q.Page, PageSize: q.Limit}
	if q.Type != "" {
		dir := domain.TransactionDirection(q.Type)
		params.Direction = &dir
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, txns, response.NewPagination(q.Page, q.Limit, total))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
