package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	eventChargeSuccess  = "charge.success"
	metadataWalletTopUp = "wallet_reload"
)

// PaymentServiceImpl implements ports.PaymentService on top of the card
// gateway. Money only moves when a signed charge.success webhook arrives.
type PaymentServiceImpl struct {
	gateway ports.PaymentGateway
	signer  ports.SignatureService
	seen    ports.ProcessedEventStore
	orders  ports.OrderService
	wallets ports.WalletService
	cfg     config.PaystackConfig
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	gateway ports.PaymentGateway,
	signer ports.SignatureService,
	seen ports.ProcessedEventStore,
	orders ports.OrderService,
	wallets ports.WalletService,
	cfg config.PaystackConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		gateway: gateway,
		signer:  signer,
		seen:    seen,
		orders:  orders,
		wallets: wallets,
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

// webhookEvent is the subset of the gateway's event envelope we act on.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"` // minor units
		Status    string          `json:"status"`
		Channel   string          `json:"channel"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}

func (s *PaymentServiceImpl) InitializePayment(ctx context.Context, req ports.GatewayInitRequest) (*ports.GatewayCheckout, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, apperror.Validation("email is required")
	}
	if !req.Amount.IsPositive() || !domain.IsWholeCents(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.CallbackURL == "" {
		req.CallbackURL = s.cfg.CallbackURL
	}

	checkout, err := s.gateway.Initialize(ctx, req)
	if err != nil {
		return nil, internalUnlessApp(err, "initialize payment")
	}
	return checkout, nil
}

func (s *PaymentServiceImpl) VerifyPayment(ctx context.Context, reference string) (*ports.GatewayVerification, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, apperror.Validation("reference is required")
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, internalUnlessApp(err, "verify payment")
	}
	return verification, nil
}

// InitializeOrderPayment opens a gateway checkout for an unpaid order and
// records the gateway reference on the order.
func (s *PaymentServiceImpl) InitializeOrderPayment(ctx context.Context, req ports.OrderPaymentRequest) (*ports.GatewayCheckout, error) {
	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, apperror.ErrAlreadyPaid()
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, apperror.Validation("order has been cancelled")
	}

	checkout, err := s.InitializePayment(ctx, ports.GatewayInitRequest{
		Email:  req.Email,
		Amount: order.Total,
		Metadata: map[string]any{
			"orderId":     order.ID.String(),
			"orderNumber": order.OrderNumber,
			"customerId":  order.CustomerID.String(),
		},
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.orders.SetPaymentReference(ctx, order.ID, checkout.Reference); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("reference", checkout.Reference).
		Msg("order payment initialized")

	return checkout, nil
}

// InitializeWalletReload opens a gateway checkout that tops up the user's wallet.
func (s *PaymentServiceImpl) InitializeWalletReload(ctx context.Context, req ports.WalletReloadRequest) (*ports.GatewayCheckout, error) {
	if !req.Amount.IsPositive() || !domain.IsWholeCents(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.wallets.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	return s.InitializePayment(ctx, ports.GatewayInitRequest{
		Email:  req.Email,
		Amount: req.Amount,
		Metadata: map[string]any{
			"type":     metadataWalletTopUp,
			"userId":   req.UserID.String(),
			"walletId": wallet.ID.String(),
		},
		CallbackURL: req.CallbackURL,
	})
}

// HandleWebhook authenticates and applies a gateway event. Each event is
// applied at most once: the event key is claimed before processing and
// released if processing fails, and wallet credits reuse the gateway
// reference so a replay cannot credit twice.
func (s *PaymentServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.signer.Verify(s.cfg.SecretKey, payload, signature) {
		s.metrics.WebhookEvent("unknown", "invalid_signature")
		return apperror.ErrInvalidSignature()
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return apperror.Validation("malformed webhook payload")
	}

	if evt.Event != eventChargeSuccess {
		s.metrics.WebhookEvent(evt.Event, "ignored")
		s.log.Debug().Str("event", evt.Event).Msg("ignoring webhook event")
		return nil
	}
	if evt.Data.Reference == "" {
		return apperror.Validation("webhook event has no reference")
	}

	key := domain.WebhookEventKey(evt.Event, evt.Data.Reference)
	fresh, err := s.seen.CheckAndSet(ctx, key, s.cfg.WebhookDedupTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("webhook dedupe check failed, processing anyway")
		fresh = true
	}
	if !fresh {
		s.metrics.WebhookEvent(evt.Event, "duplicate")
		return nil
	}

	if err := s.applyCharge(ctx, evt); err != nil {
		if relErr := s.seen.Release(ctx, key); relErr != nil {
			s.log.Warn().Err(relErr).Str("key", key).Msg("failed to release webhook event key")
		}
		s.metrics.WebhookEvent(evt.Event, "failed")
		return err
	}

	s.metrics.WebhookEvent(evt.Event, "processed")
	return nil
}

func (s *PaymentServiceImpl) applyCharge(ctx context.Context, evt webhookEvent) error {
	meta := decodeMetadata(evt.Data.Metadata)
	reference := evt.Data.Reference

	// A charge funds either a wallet reload or an order, never both.
	if metaString(meta, "type") == metadataWalletTopUp {
		return s.creditReload(ctx, meta, reference, evt)
	}

	if raw := metaString(meta, "orderId"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			return apperror.Validation("webhook metadata has an invalid orderId")
		}
		if _, err := s.orders.MarkPaid(ctx, orderID, reference); err != nil {
			return err
		}
	}
	return nil
}

func (s *PaymentServiceImpl) creditReload(ctx context.Context, meta map[string]any, reference string, evt webhookEvent) error {
	walletID, err := s.reloadWalletID(ctx, meta)
	if err != nil {
		return err
	}

	amount := decimal.New(evt.Data.Amount, -2)
	_, err = s.wallets.Credit(ctx, ports.WalletMutation{
		WalletID:      walletID,
		Amount:        amount,
		Description:   "Wallet reload via Paystack",
		Reference:     reference,
		PaymentMethod: domain.PaymentMethodPaystack,
		Metadata: map[string]any{
			"paystackReference": reference,
			"channel":           evt.Data.Channel,
		},
	})
	if apperror.Is(err, apperror.CodeDuplicateRef) {
		s.log.Info().Str("reference", reference).Msg("wallet reload already applied")
		return nil
	}
	return err
}

func (s *PaymentServiceImpl) reloadWalletID(ctx context.Context, meta map[string]any) (uuid.UUID, error) {
	if id, err := uuid.Parse(metaString(meta, "walletId")); err == nil {
		return id, nil
	}

	userID, err := uuid.Parse(metaString(meta, "userId"))
	if err != nil {
		return uuid.Nil, apperror.Validation("webhook metadata has no wallet or user")
	}
	wallet, err := s.wallets.GetByUser(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	return wallet.ID, nil
}

// decodeMetadata tolerates the gateway sending metadata as an object, as a
// JSON-encoded string, or as an empty string.
func decodeMetadata(raw json.RawMessage) map[string]any {
	meta := map[string]any{}
	if len(raw) == 0 {
		return meta
	}
	if err := json.Unmarshal(raw, &meta); err == nil {
		return meta
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil && encoded != "" {
		_ = json.Unmarshal([]byte(encoded), &meta)
	}
	return meta
}

func metaString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
