package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/internal/core/ports/mocks"
	"shipa-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestOrderService_PlaceOrder_WalletDebit(t *testing.T) {
	m := newMarketplace(t)
	w := m.fund(t, 200)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodWallet))
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(dec("90")))
	assert.True(t, order.ServiceFee.Equal(dec("4.5")))
	assert.True(t, order.DeliveryFee.Equal(dec("25")))
	assert.True(t, order.Total.Equal(dec("119.5")))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, domain.OrderDebitReference(order.OrderNumber), order.PaymentReference)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.WithinDuration(t, order.CreatedAt.Add(45*time.Minute), order.EstimatedDeliveryTime, 0)

	assert.True(t, m.balance(t).Equal(dec("80.5")))

	debit := domain.DirectionDebit
	txns, total, err := m.wallets.ListTransactions(ctx, ports.TransactionListParams{WalletID: w.ID, Direction: &debit})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.True(t, txns[0].Amount.Equal(dec("119.5")))
	assert.Equal(t, "Payment for order "+order.OrderNumber, txns[0].Description)
	assert.Equal(t, order.ID.String(), txns[0].Metadata["orderId"])

	assert.Equal(t, []domain.OrderEventType{domain.OrderEventPlaced}, m.events.types())
}

func TestOrderService_PlaceOrder_InsufficientFundsPersistsNothing(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 50)
	before := m.store.Stats()

	order, err := m.orders.PlaceOrder(context.Background(), m.standardOrder(domain.PaymentMethodWallet))
	require.Error(t, err)
	assert.Nil(t, order)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeInsufficientFunds, appErr.Code)
	assert.True(t, appErr.Details["shortfall"].(decimal.Decimal).Equal(dec("69.5")))

	after := m.store.Stats()
	assert.Equal(t, before.Orders, after.Orders)
	assert.Equal(t, before.Transactions, after.Transactions)
	assert.True(t, m.balance(t).Equal(dec("50")))
	assert.Empty(t, m.events.types())
}

func TestOrderService_PlaceOrder_WalletMissing(t *testing.T) {
	m := newMarketplace(t)

	_, err := m.orders.PlaceOrder(context.Background(), m.standardOrder(domain.PaymentMethodWallet))
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	assert.Equal(t, 0, m.store.Stats().Orders)
}

func TestOrderService_PlaceOrder_CashLeavesWalletAlone(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 10)

	order, err := m.orders.PlaceOrder(context.Background(), m.standardOrder(domain.PaymentMethodCash))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Empty(t, order.PaymentReference)
	assert.True(t, m.balance(t).Equal(dec("10")))
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *ports.PlaceOrderRequest)
		code   string
	}{
		{"no items", func(r *ports.PlaceOrderRequest) { r.Items = nil }, apperror.CodeValidation},
		{"no address", func(r *ports.PlaceOrderRequest) { r.DeliveryAddress = nil }, apperror.CodeValidation},
		{"blank street", func(r *ports.PlaceOrderRequest) { r.DeliveryAddress = &domain.Address{City: "JHB"} }, apperror.CodeValidation},
		{"bad payment method", func(r *ports.PlaceOrderRequest) { r.PaymentMethod = "crypto" }, apperror.CodeValidation},
		{"unknown shop", func(r *ports.PlaceOrderRequest) { r.ShopID = uuid.New() }, apperror.CodeNotFound},
		{"item from another shop", func(r *ports.PlaceOrderRequest) {
			r.Items = []ports.OrderLine{{MenuItemID: uuid.New(), Quantity: 1}}
		}, apperror.CodeNotFound},
		{"zero quantity", func(r *ports.PlaceOrderRequest) { r.Items[0].Quantity = 0 }, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := m.standardOrder(domain.PaymentMethodCash)
			tt.mutate(&req)
			_, err := m.orders.PlaceOrder(ctx, req)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
	assert.Equal(t, 0, m.store.Stats().Orders)
}

func TestOrderService_PlaceOrder_InactiveShopAndUnavailableItem(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	soldOut := m.pizza
	soldOut.IsAvailable = false
	m.store.PutMenuItem(soldOut)
	_, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodCash))
	assert.True(t, apperror.Is(err, apperror.CodeItemUnavailable))

	closed := m.shop
	closed.IsActive = false
	m.store.PutShop(closed)
	_, err = m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodCash))
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestOrderService_PlaceOrder_IdempotentReplay(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 500)
	ctx := context.Background()

	req := m.standardOrder(domain.PaymentMethodWallet)
	req.IdempotencyKey = "checkout-42"

	first, err := m.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)
	second, err := m.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, m.store.Stats().Orders)
	assert.True(t, m.balance(t).Equal(dec("380.5")))
}

func TestOrderService_PlaceOrder_ReplayAfterCacheLoss(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 500)
	ctx := context.Background()

	req := m.standardOrder(domain.PaymentMethodWallet)
	req.IdempotencyKey = "checkout-43"

	first, err := m.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)

	m.orders.idempCache = newMapCache()
	second, err := m.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, m.store.Stats().Orders)
	assert.True(t, m.balance(t).Equal(dec("380.5")))
}

func TestOrderService_CancelOrder_RefundsWalletOrder(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 200)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodWallet))
	require.NoError(t, err)

	cancelled, err := m.orders.CancelOrder(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, DefaultCancelReason, cancelled.CancelReason)
	assert.True(t, m.balance(t).Equal(dec("200")))

	// A second cancel is an invalid transition and must not refund again.
	_, err = m.orders.CancelOrder(ctx, order.ID, "again")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition))
	assert.True(t, m.balance(t).Equal(dec("200")))

	assert.Equal(t, []domain.OrderEventType{domain.OrderEventPlaced, domain.OrderEventCancelled}, m.events.types())
}

func TestOrderService_CancelOrder_FromConfirmedKeepsReason(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodCash))
	require.NoError(t, err)
	_, err = m.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)

	cancelled, err := m.orders.CancelOrder(ctx, order.ID, "Changed my mind")
	require.NoError(t, err)
	assert.Equal(t, "Changed my mind", cancelled.CancelReason)
	assert.Equal(t, domain.PaymentStatusPending, cancelled.PaymentStatus)
}

func TestOrderService_CancelOrder_FromPreparingRejected(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 200)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodWallet))
	require.NoError(t, err)
	for _, next := range []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusPreparing} {
		_, err = m.orders.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err)
	}

	_, err = m.orders.CancelOrder(ctx, order.ID, "too late")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition))

	got, err := m.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPreparing, got.Status)
	assert.True(t, m.balance(t).Equal(dec("80.5")))
}

func TestOrderService_UpdateStatus_Lifecycle(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodCash))
	require.NoError(t, err)

	_, err = m.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusReady)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition), "cannot skip states")

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusConfirmed, domain.OrderStatusPreparing, domain.OrderStatusReady,
		domain.OrderStatusDelivering, domain.OrderStatusCompleted,
	} {
		order, err = m.orders.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err, "moving to %s", next)
		assert.Equal(t, next, order.Status)
	}
	require.NotNil(t, order.ActualDeliveryTime)

	_, err = m.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPending)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition))

	_, err = m.orders.UpdateStatus(ctx, order.ID, "teleported")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestOrderService_UpdateStatus_CancelledRoutesThroughRefund(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 200)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodWallet))
	require.NoError(t, err)

	cancelled, err := m.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.True(t, m.balance(t).Equal(dec("200")))
}

func TestOrderService_GetOrder_NotFound(t *testing.T) {
	m := newMarketplace(t)

	_, err := m.orders.GetOrder(context.Background(), uuid.New())
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestOrderService_ListOrders(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodCash))
		require.NoError(t, err)
	}

	customer := m.customer.ID
	orders, total, err := m.orders.ListOrders(ctx, ports.OrderListParams{CustomerID: &customer, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 2)

	shop := m.shop.ID
	_, total, err = m.orders.ListOrders(ctx, ports.OrderListParams{ShopID: &shop})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, _, err = m.orders.ListOrders(ctx, ports.OrderListParams{})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
	_, _, err = m.orders.ListOrders(ctx, ports.OrderListParams{CustomerID: &customer, ShopID: &shop})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestOrderService_SetPaymentReferenceAndMarkPaid(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodPaystack))
	require.NoError(t, err)

	withRef, err := m.orders.SetPaymentReference(ctx, order.ID, "ps_ref_1")
	require.NoError(t, err)
	assert.Equal(t, "ps_ref_1", withRef.PaymentReference)

	paid, err := m.orders.MarkPaid(ctx, order.ID, "ps_ref_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.PaymentStatus)

	again, err := m.orders.MarkPaid(ctx, order.ID, "ps_ref_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, again.PaymentStatus)

	_, err = m.orders.SetPaymentReference(ctx, order.ID, "ps_ref_2")
	assert.True(t, apperror.Is(err, apperror.CodeAlreadyPaid))

	assert.Equal(t, []domain.OrderEventType{domain.OrderEventPlaced, domain.OrderEventPaid}, m.events.types())
}

func TestOrderService_MarkPaid_AfterCancellationFlagsRefund(t *testing.T) {
	m := newMarketplace(t)
	var logs bytes.Buffer
	m.orders.log = zerolog.New(&logs)
	ctx := context.Background()

	order, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodPaystack))
	require.NoError(t, err)
	_, err = m.orders.CancelOrder(ctx, order.ID, "changed my mind")
	require.NoError(t, err)

	late, err := m.orders.MarkPaid(ctx, order.ID, "ps_late")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, late.Status)
	assert.Equal(t, domain.PaymentStatusPaid, late.PaymentStatus)
	assert.Equal(t, "ps_late", late.PaymentReference)

	assert.Contains(t, logs.String(), "manual refund required")
	assert.Contains(t, logs.String(), `"reference":"ps_late"`)
	assert.Equal(t, []domain.OrderEventType{domain.OrderEventPlaced, domain.OrderEventCancelled}, m.events.types())
}

func TestOrderService_ConcurrentWalletOrdersNeverOverdraw(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, 300) // room for two 119.50 orders
	ctx := context.Background()

	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := m.orders.PlaceOrder(ctx, m.standardOrder(domain.PaymentMethodWallet))
			errs <- err
		}()
	}

	placed := 0
	for i := 0; i < 6; i++ {
		if err := <-errs; err == nil {
			placed++
		} else {
			assert.True(t, apperror.Is(err, apperror.CodeInsufficientFunds))
		}
	}

	assert.Equal(t, 2, placed)
	assert.Equal(t, 2, m.store.Stats().Orders)
	assert.True(t, m.balance(t).Equal(dec("61")))
}

func TestOrderService_PlaceOrder_SideChannelFailuresAreBestEffort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newMarketplace(t)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)
	m.orders.idempCache = cache
	m.orders.events = publisher

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Hour).Return(errors.New("redis down"))
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	req := m.standardOrder(domain.PaymentMethodCash)
	req.IdempotencyKey = "k1"

	order, err := m.orders.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestOrderService_PlaceOrder_BeginFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := newMarketplace(t)
	transactor := mocks.NewMockDBTransactor(ctrl)
	m.orders.transactor = transactor
	transactor.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("pool exhausted"))

	_, err := m.orders.PlaceOrder(context.Background(), m.standardOrder(domain.PaymentMethodCash))
	assert.True(t, apperror.Is(err, apperror.CodeInternal))
	assert.Empty(t, m.events.types())
}
