package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/internal/core/ports/mocks"
	"shipa-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type paymentTestDeps struct {
	svc     *PaymentServiceImpl
	gateway *mocks.MockPaymentGateway
	seen    *mocks.MockProcessedEventStore
	orders  *mocks.MockOrderService
	wallets *mocks.MockWalletService
	signer  *HMACSignatureService
	secret  string
}

func setupPaymentService(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	cfg := testConfig().Paystack
	d := &paymentTestDeps{
		gateway: mocks.NewMockPaymentGateway(ctrl),
		seen:    mocks.NewMockProcessedEventStore(ctrl),
		orders:  mocks.NewMockOrderService(ctrl),
		wallets: mocks.NewMockWalletService(ctrl),
		signer:  NewHMACSignatureService(),
		secret:  cfg.SecretKey,
	}
	d.svc = NewPaymentService(d.gateway, d.signer, d.seen, d.orders, d.wallets, cfg, nil, zerolog.Nop())
	return d
}

func (d *paymentTestDeps) signed(t *testing.T, v any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return payload, d.signer.Sign(d.secret, payload)
}

func chargeSuccess(reference string, amountMinor int64, metadata any) map[string]any {
	return map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": reference,
			"amount":    amountMinor,
			"status":    "success",
			"channel":   "card",
			"metadata":  metadata,
		},
	}
}

// ==================== Initialize / Verify ====================

func TestPaymentService_InitializePayment_DefaultsCallback(t *testing.T) {
	d := setupPaymentService(t)

	d.gateway.EXPECT().Initialize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.GatewayInitRequest) (*ports.GatewayCheckout, error) {
			assert.Equal(t, "https://shipa.test/callback", req.CallbackURL)
			return &ports.GatewayCheckout{AuthorizationURL: "https://checkout.paystack.com/x", Reference: "ref_1"}, nil
		})

	checkout, err := d.svc.InitializePayment(context.Background(), ports.GatewayInitRequest{
		Email: "a@b.test", Amount: dec("99.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ref_1", checkout.Reference)
}

func TestPaymentService_InitializePayment_Validation(t *testing.T) {
	d := setupPaymentService(t)

	_, err := d.svc.InitializePayment(context.Background(), ports.GatewayInitRequest{Amount: dec("10")})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = d.svc.InitializePayment(context.Background(), ports.GatewayInitRequest{Email: "a@b.test", Amount: dec("0")})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidAmount))

	_, err = d.svc.InitializePayment(context.Background(), ports.GatewayInitRequest{Email: "a@b.test", Amount: dec("10.005")})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidAmount))

	_, err = d.svc.InitializeWalletReload(context.Background(), ports.WalletReloadRequest{
		UserID: uuid.New(), Email: "a@b.test", Amount: dec("0.001"),
	})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidAmount))
}

func TestPaymentService_VerifyPayment_GatewayErrorPassesThrough(t *testing.T) {
	d := setupPaymentService(t)
	d.gateway.EXPECT().Verify(gomock.Any(), "ref_x").Return(nil, apperror.ErrGateway("Transaction reference not found", nil))

	_, err := d.svc.VerifyPayment(context.Background(), "ref_x")
	assert.True(t, apperror.Is(err, apperror.CodeGateway))
}

func TestPaymentService_InitializeOrderPayment(t *testing.T) {
	d := setupPaymentService(t)
	order := &domain.Order{
		ID: uuid.New(), OrderNumber: "ORD-1-ABC", CustomerID: uuid.New(),
		Total: dec("119.5"), Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPending,
	}

	d.orders.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil)
	d.gateway.EXPECT().Initialize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.GatewayInitRequest) (*ports.GatewayCheckout, error) {
			assert.True(t, req.Amount.Equal(dec("119.5")))
			assert.Equal(t, order.ID.String(), req.Metadata["orderId"])
			return &ports.GatewayCheckout{Reference: "ps_ref"}, nil
		})
	d.orders.EXPECT().SetPaymentReference(gomock.Any(), order.ID, "ps_ref").Return(order, nil)

	checkout, err := d.svc.InitializeOrderPayment(context.Background(), ports.OrderPaymentRequest{OrderID: order.ID, Email: "c@d.test"})
	require.NoError(t, err)
	assert.Equal(t, "ps_ref", checkout.Reference)
}

func TestPaymentService_InitializeOrderPayment_AlreadyPaid(t *testing.T) {
	d := setupPaymentService(t)
	order := &domain.Order{ID: uuid.New(), PaymentStatus: domain.PaymentStatusPaid}
	d.orders.EXPECT().GetOrder(gomock.Any(), order.ID).Return(order, nil)

	_, err := d.svc.InitializeOrderPayment(context.Background(), ports.OrderPaymentRequest{OrderID: order.ID, Email: "c@d.test"})
	assert.True(t, apperror.Is(err, apperror.CodeAlreadyPaid))
}

func TestPaymentService_InitializeWalletReload(t *testing.T) {
	d := setupPaymentService(t)
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID}

	d.wallets.EXPECT().GetOrCreate(gomock.Any(), userID).Return(wallet, nil)
	d.gateway.EXPECT().Initialize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.GatewayInitRequest) (*ports.GatewayCheckout, error) {
			assert.Equal(t, "wallet_reload", req.Metadata["type"])
			assert.Equal(t, wallet.ID.String(), req.Metadata["walletId"])
			return &ports.GatewayCheckout{Reference: "reload_ref"}, nil
		})

	_, err := d.svc.InitializeWalletReload(context.Background(), ports.WalletReloadRequest{
		UserID: userID, Email: "u@shipa.test", Amount: dec("150"),
	})
	require.NoError(t, err)
}

// ==================== Webhook ====================

func TestPaymentService_HandleWebhook_InvalidSignature(t *testing.T) {
	d := setupPaymentService(t)
	payload, _ := d.signed(t, chargeSuccess("ref", 100, nil))

	err := d.svc.HandleWebhook(context.Background(), payload, "deadbeef")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidSignature))
}

func TestPaymentService_HandleWebhook_IgnoresOtherEvents(t *testing.T) {
	d := setupPaymentService(t)
	payload, sig := d.signed(t, map[string]any{"event": "transfer.success", "data": map[string]any{"reference": "r"}})

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_WalletReloadCredits(t *testing.T) {
	d := setupPaymentService(t)
	walletID := uuid.New()
	payload, sig := d.signed(t, chargeSuccess("ps_reload_1", 15050, map[string]any{
		"type": "wallet_reload", "walletId": walletID.String(),
	}))

	d.seen.EXPECT().CheckAndSet(gomock.Any(), "paystack:charge.success:ps_reload_1", time.Hour).Return(true, nil)
	d.wallets.EXPECT().Credit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.WalletMutation) (*domain.Transaction, error) {
			assert.Equal(t, walletID, req.WalletID)
			assert.True(t, req.Amount.Equal(dec("150.5")), "minor units converted, got %s", req.Amount)
			assert.Equal(t, "ps_reload_1", req.Reference)
			assert.Equal(t, domain.PaymentMethodPaystack, req.PaymentMethod)
			return &domain.Transaction{}, nil
		})

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_WalletReloadIgnoresOrderID(t *testing.T) {
	d := setupPaymentService(t)
	walletID := uuid.New()
	payload, sig := d.signed(t, chargeSuccess("ps_reload_3", 5000, map[string]any{
		"type": "wallet_reload", "walletId": walletID.String(), "orderId": uuid.NewString(),
	}))

	d.seen.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	d.wallets.EXPECT().Credit(gomock.Any(), gomock.Any()).Return(&domain.Transaction{}, nil)
	d.orders.EXPECT().MarkPaid(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_MetadataAsEncodedString(t *testing.T) {
	d := setupPaymentService(t)
	userID := uuid.New()
	walletID := uuid.New()
	encoded := `{"type":"wallet_reload","userId":"` + userID.String() + `"}`
	payload, sig := d.signed(t, chargeSuccess("ps_reload_2", 1000, encoded))

	d.seen.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	d.wallets.EXPECT().GetByUser(gomock.Any(), userID).Return(&domain.Wallet{ID: walletID}, nil)
	d.wallets.EXPECT().Credit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.WalletMutation) (*domain.Transaction, error) {
			assert.Equal(t, walletID, req.WalletID)
			return &domain.Transaction{}, nil
		})

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_DuplicateEventSkipped(t *testing.T) {
	d := setupPaymentService(t)
	payload, sig := d.signed(t, chargeSuccess("ps_dup", 1000, map[string]any{"type": "wallet_reload", "walletId": uuid.NewString()}))

	d.seen.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_AlreadyCreditedIsSuccess(t *testing.T) {
	d := setupPaymentService(t)
	payload, sig := d.signed(t, chargeSuccess("ps_ref", 1000, map[string]any{"type": "wallet_reload", "walletId": uuid.NewString()}))

	d.seen.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	d.wallets.EXPECT().Credit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateReference())

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_OrderMarkedPaid(t *testing.T) {
	d := setupPaymentService(t)
	orderID := uuid.New()
	payload, sig := d.signed(t, chargeSuccess("ps_order", 11950, map[string]any{"orderId": orderID.String()}))

	d.seen.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	d.orders.EXPECT().MarkPaid(gomock.Any(), orderID, "ps_order").Return(&domain.Order{ID: orderID}, nil)

	require.NoError(t, d.svc.HandleWebhook(context.Background(), payload, sig))
}

func TestPaymentService_HandleWebhook_FailureReleasesKey(t *testing.T) {
	d := setupPaymentService(t)
	orderID := uuid.New()
	payload, sig := d.signed(t, chargeSuccess("ps_order", 11950, map[string]any{"orderId": orderID.String()}))

	key := domain.WebhookEventKey("charge.success", "ps_order")
	d.seen.EXPECT().CheckAndSet(gomock.Any(), key, gomock.Any()).Return(true, nil)
	d.orders.EXPECT().MarkPaid(gomock.Any(), orderID, "ps_order").Return(nil, apperror.InternalError(errors.New("db down")))
	d.seen.EXPECT().Release(gomock.Any(), key).Return(nil)

	err := d.svc.HandleWebhook(context.Background(), payload, sig)
	assert.True(t, apperror.Is(err, apperror.CodeInternal))
}

func TestPaymentService_HandleWebhook_MalformedPayload(t *testing.T) {
	d := setupPaymentService(t)
	payload := []byte(`{"event":`)

	err := d.svc.HandleWebhook(context.Background(), payload, d.signer.Sign(d.secret, payload))
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
