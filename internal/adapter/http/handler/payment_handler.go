package handler

import (
	"net/http"
	"strings"

	"shipa-backend/internal/adapter/http/dto"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

const HeaderPaystackSignature = "x-paystack-signature"

// PaymentHandler handles Paystack checkout and webhook endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Initialize handles POST /api/v1/payment/initialize.
func (h *PaymentHandler) Initialize(c *gin.Context) {
	var req dto.InitializePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	checkout, err := h.paymentSvc.InitializePayment(c.Request.Context(), ports.GatewayInitRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Metadata:    req.Metadata,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, checkout)
}

// Verify handles GET /api/v1/payment/verify/:reference.
func (h *PaymentHandler) Verify(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		response.Error(c, apperror.Validation("reference is required"))
		return
	}

	result, err := h.paymentSvc.VerifyPayment(c.Request.Context(), reference)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// InitializeOrder handles POST /api/v1/payment/order.
func (h *PaymentHandler) InitializeOrder(c *gin.Context) {
	var req dto.OrderPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	checkout, err := h.paymentSvc.InitializeOrderPayment(c.Request.Context(), ports.OrderPaymentRequest{
		OrderID:     req.OrderID,
		Email:       req.Email,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, checkout)
}

// InitializeWalletReload handles POST /api/v1/payment/wallet/reload.
func (h *PaymentHandler) InitializeWalletReload(c *gin.Context) {
	var req dto.WalletReloadPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	checkout, err := h.paymentSvc.InitializeWalletReload(c.Request.Context(), ports.WalletReloadRequest{
		UserID:      req.UserID,
		Email:       req.Email,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, checkout)
}

// Webhook handles POST /api/v1/payment/webhook. The signature covers the
// raw body, so it is read before any decoding.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	if err := h.paymentSvc.HandleWebhook(c.Request.Context(), payload, c.GetHeader(HeaderPaystackSignature)); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
