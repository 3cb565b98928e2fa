package service

import (
	"context"
	"encoding/json"
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
	"golang.org/x/sync/errgroup"
)

// DefaultCancelReason is stored when a cancellation carries no reason.
const DefaultCancelReason = "Cancelled by user"

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orderRepo  ports.OrderRepository
	shopRepo   ports.ShopRepository
	menuRepo   ports.MenuItemRepository
	walletRepo ports.WalletRepository
	wallets    ports.WalletService
	pricing    ports.PricingEngine
	transactor ports.DBTransactor
	idempCache ports.IdempotencyCache
	events     ports.EventPublisher
	cfg        config.OrderConfig
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	orderRepo ports.OrderRepository,
	shopRepo ports.ShopRepository,
	menuRepo ports.MenuItemRepository,
	walletRepo ports.WalletRepository,
	wallets ports.WalletService,
	pricing ports.PricingEngine,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	events ports.EventPublisher,
	cfg config.OrderConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orderRepo:  orderRepo,
		shopRepo:   shopRepo,
		menuRepo:   menuRepo,
		walletRepo: walletRepo,
		wallets:    wallets,
		pricing:    pricing,
		transactor: transactor,
		idempCache: idempCache,
		events:     events,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder validates, prices and persists an order. A wallet-paid order is
// debited and inserted in one database transaction, so a failed debit leaves
// no order behind and a failed insert leaves no debit behind.
func (s *OrderServiceImpl) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (*domain.Order, error) {
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.PlaceOrderIdempotencyKey(req.CustomerID, req.IdempotencyKey)
		if cached := s.cachedOrder(ctx, idempKey); cached != nil {
			return cached, nil
		}
		// Cache miss: the orders table is the durable record of the key.
		existing, err := s.orderRepo.GetByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check idempotency: %w", err))
		}
		if existing != nil {
			s.cacheOrder(ctx, idempKey, existing)
			return existing, nil
		}
	}

	menu, err := s.resolveCatalog(ctx, req)
	if err != nil {
		return nil, err
	}

	priced, err := s.pricing.Price(req.Items, menu)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		ID:                    uuid.New(),
		OrderNumber:           domain.NewOrderNumber(now),
		CustomerID:            req.CustomerID,
		ShopID:                req.ShopID,
		Items:                 priced.Items,
		Subtotal:              priced.Subtotal,
		DeliveryFee:           priced.DeliveryFee,
		ServiceFee:            priced.ServiceFee,
		Total:                 priced.Total,
		Status:                domain.OrderStatusPending,
		PaymentMethod:         req.PaymentMethod,
		PaymentStatus:         domain.PaymentStatusPending,
		DeliveryAddress:       *req.DeliveryAddress,
		DeliveryInstructions:  req.DeliveryInstructions,
		Notes:                 req.Notes,
		IdempotencyKey:        req.IdempotencyKey,
		EstimatedDeliveryTime: now.Add(s.cfg.EstimatedDelivery),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var wallet *domain.Wallet
	if req.PaymentMethod == domain.PaymentMethodWallet {
		wallet, err = s.walletRepo.GetByUserID(ctx, req.CustomerID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrNotFound("Wallet")
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if wallet != nil {
		reference := domain.OrderDebitReference(order.OrderNumber)
		if _, err := s.wallets.DebitTx(ctx, dbTx, ports.WalletMutation{
			WalletID:      wallet.ID,
			Amount:        order.Total,
			Description:   "Payment for order " + order.OrderNumber,
			Reference:     reference,
			PaymentMethod: domain.PaymentMethodWallet,
			Metadata:      orderMetadata(order),
		}); err != nil {
			return nil, err
		}
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaymentReference = reference
	}

	if err := s.orderRepo.Create(ctx, dbTx, order); err != nil {
		if winner := s.concurrentReplay(ctx, req); winner != nil {
			return winner, nil
		}
		return nil, internalUnlessApp(err, "create order")
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if idempKey != "" {
		s.cacheOrder(ctx, idempKey, order)
	}
	s.metrics.OrderPlaced(string(order.PaymentMethod))
	s.publish(ctx, domain.OrderEventPlaced, order)

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("payment_method", string(order.PaymentMethod)).
		Str("payment_status", string(order.PaymentStatus)).
		Str("total", order.Total.String()).
		Msg("order placed")

	return order, nil
}

func (s *OrderServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	return order, nil
}

// ListOrders pages through a customer's or a shop's orders, newest first.
func (s *OrderServiceImpl) ListOrders(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	if (params.CustomerID == nil) == (params.ShopID == nil) {
		return nil, 0, apperror.Validation("exactly one of customer or shop must be given")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown order status %q", *params.Status))
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize, s.cfg.PageSize)

	orders, total, err := s.orderRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list orders: %w", err))
	}
	return orders, total, nil
}

// UpdateStatus advances the order along its lifecycle under a row lock.
// Moving to cancelled goes through CancelOrder so that refunds apply.
func (s *OrderServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown order status %q", status))
	}
	if status == domain.OrderStatusCancelled {
		return s.CancelOrder(ctx, id, "")
	}

	order, err := s.withLockedOrder(ctx, id, func(tx pgx.Tx, o *domain.Order) error {
		if !o.Status.CanTransitionTo(status) {
			return apperror.ErrInvalidTransition(string(o.Status), string(status))
		}
		o.Status = status
		if status == domain.OrderStatusCompleted {
			delivered := s.now()
			o.ActualDeliveryTime = &delivered
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.OrderEventStatusChanged, order)
	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("status", string(order.Status)).
		Msg("order status updated")

	return order, nil
}

// CancelOrder cancels a pending or confirmed order. A wallet-settled order is
// refunded in the same transaction that flips its status.
func (s *OrderServiceImpl) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	refunded := false

	order, err := s.withLockedOrder(ctx, id, func(tx pgx.Tx, o *domain.Order) error {
		if !o.Status.IsCancellable() {
			return apperror.ErrInvalidTransition(string(o.Status), string(domain.OrderStatusCancelled))
		}

		if o.IsWalletSettled() {
			wallet, err := s.walletRepo.GetByUserID(ctx, o.CustomerID)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
			}
			if wallet == nil {
				return apperror.ErrNotFound("Wallet")
			}

			if _, err := s.wallets.CreditTx(ctx, tx, ports.WalletMutation{
				WalletID:      wallet.ID,
				Amount:        o.Total,
				Description:   "Refund for cancelled order " + o.OrderNumber,
				Reference:     domain.RefundReference(o.OrderNumber),
				PaymentMethod: domain.PaymentMethodWallet,
				Metadata:      orderMetadata(o),
			}); err != nil {
				return err
			}
			o.PaymentStatus = domain.PaymentStatusRefunded
			refunded = true
		}

		if strings.TrimSpace(reason) == "" {
			reason = DefaultCancelReason
		}
		o.Status = domain.OrderStatusCancelled
		o.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCancelled(refunded)
	s.publish(ctx, domain.OrderEventCancelled, order)
	s.log.Info().
		Str("order_number", order.OrderNumber).
		Bool("refunded", refunded).
		Str("reason", order.CancelReason).
		Msg("order cancelled")

	return order, nil
}

func (s *OrderServiceImpl) SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) (*domain.Order, error) {
	return s.withLockedOrder(ctx, id, func(_ pgx.Tx, o *domain.Order) error {
		if o.PaymentStatus == domain.PaymentStatusPaid {
			return apperror.ErrAlreadyPaid()
		}
		o.PaymentReference = reference
		return nil
	})
}

// MarkPaid records a confirmed gateway charge. A charge that lands after the
// order was cancelled is still recorded so the money stays traceable, but the
// order stays cancelled and no paid event is published.
func (s *OrderServiceImpl) MarkPaid(ctx context.Context, id uuid.UUID, reference string) (*domain.Order, error) {
	changed := false
	order, err := s.withLockedOrder(ctx, id, func(_ pgx.Tx, o *domain.Order) error {
		if o.PaymentStatus == domain.PaymentStatusPaid {
			return nil
		}
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentReference = reference
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed && order.Status == domain.OrderStatusCancelled {
		s.log.Warn().
			Str("order_number", order.OrderNumber).
			Str("reference", reference).
			Str("amount", order.Total.String()).
			Msg("payment received for cancelled order, manual refund required")
		return order, nil
	}

	if changed {
		s.publish(ctx, domain.OrderEventPaid, order)
		s.log.Info().
			Str("order_number", order.OrderNumber).
			Str("reference", reference).
			Msg("order marked paid")
	}
	return order, nil
}

// withLockedOrder loads the order FOR UPDATE, applies fn and persists the
// result in one transaction.
func (s *OrderServiceImpl) withLockedOrder(ctx context.Context, id uuid.UUID, fn func(tx pgx.Tx, o *domain.Order) error) (*domain.Order, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}

	before := *order
	if err := fn(dbTx, order); err != nil {
		return nil, err
	}
	if before.Status == order.Status &&
		before.PaymentStatus == order.PaymentStatus &&
		before.PaymentReference == order.PaymentReference {
		return order, nil
	}

	order.UpdatedAt = s.now()
	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return order, nil
}

// resolveCatalog loads the shop and the requested menu items concurrently.
func (s *OrderServiceImpl) resolveCatalog(ctx context.Context, req ports.PlaceOrderRequest) (map[uuid.UUID]domain.MenuItem, error) {
	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]struct{}, len(req.Items))
	for _, line := range req.Items {
		if _, ok := seen[line.MenuItemID]; !ok {
			seen[line.MenuItemID] = struct{}{}
			ids = append(ids, line.MenuItemID)
		}
	}

	var (
		shop  *domain.Shop
		items []domain.MenuItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupConcurrency())

	g.Go(func() error {
		found, err := s.shopRepo.GetByID(gctx, req.ShopID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get shop: %w", err))
		}
		if found == nil || !found.IsActive {
			return apperror.ErrNotFound("Shop")
		}
		shop = found
		return nil
	})
	g.Go(func() error {
		found, err := s.menuRepo.GetByIDs(gctx, ids)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get menu items: %w", err))
		}
		items = found
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	menu := make(map[uuid.UUID]domain.MenuItem, len(items))
	for _, mi := range items {
		if mi.ShopID == shop.ID {
			menu[mi.ID] = mi
		}
	}
	return menu, nil
}

// concurrentReplay returns the order a concurrent request with the same
// idempotency key committed first, if any.
func (s *OrderServiceImpl) concurrentReplay(ctx context.Context, req ports.PlaceOrderRequest) *domain.Order {
	if req.IdempotencyKey == "" {
		return nil
	}
	existing, err := s.orderRepo.GetByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("idempotency lookup after failed insert")
		return nil
	}
	return existing
}

func (s *OrderServiceImpl) lookupConcurrency() int {
	if s.cfg.LookupConcurrency < 2 {
		return 2
	}
	return s.cfg.LookupConcurrency
}

func (s *OrderServiceImpl) cachedOrder(ctx context.Context, key string) *domain.Order {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, placing order")
		return nil
	}
	if cached == nil {
		return nil
	}

	var order domain.Order
	if err := json.Unmarshal(cached, &order); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached order")
		return nil
	}
	return &order
}

func (s *OrderServiceImpl) cacheOrder(ctx context.Context, key string, order *domain.Order) {
	data, err := json.Marshal(order)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal order for idempotency cache")
		return
	}
	if err := s.idempCache.Set(ctx, key, data, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func (s *OrderServiceImpl) publish(ctx context.Context, t domain.OrderEventType, order *domain.Order) {
	if err := s.events.Publish(ctx, domain.NewOrderEvent(t, order, s.now())); err != nil {
		s.log.Warn().Err(err).
			Str("event", string(t)).
			Str("order_number", order.OrderNumber).
			Msg("failed to publish order event")
	}
}

func orderMetadata(o *domain.Order) map[string]any {
	return map[string]any{
		"orderId":     o.ID.String(),
		"orderNumber": o.OrderNumber,
	}
}

func validatePlaceOrder(req ports.PlaceOrderRequest) error {
	switch {
	case req.CustomerID == uuid.Nil:
		return apperror.Validation("customer is required")
	case req.ShopID == uuid.Nil:
		return apperror.Validation("shop is required")
	case len(req.Items) == 0:
		return apperror.Validation("order must contain at least one item")
	case req.DeliveryAddress == nil ||
		strings.TrimSpace(req.DeliveryAddress.Street) == "" ||
		strings.TrimSpace(req.DeliveryAddress.City) == "":
		return apperror.Validation("delivery address is required")
	case !req.PaymentMethod.IsValid():
		return apperror.Validation("payment method must be one of wallet, paystack, cash")
	}

	for i, line := range req.Items {
		if line.MenuItemID == uuid.Nil {
			return apperror.Validation(fmt.Sprintf("items[%d]: menu item is required", i))
		}
	}
	return nil
}
