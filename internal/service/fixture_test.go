package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shipa-backend/config"
	"shipa-backend/internal/adapter/storage/memory"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/geo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process ports.IdempotencyCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// eventRecorder is an in-process ports.EventPublisher.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (r *eventRecorder) Publish(_ context.Context, e domain.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []domain.OrderEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OrderEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// marketplace wires the real services over the memory store with one
// customer, one shop and a two-item menu.
type marketplace struct {
	store    *memory.Store
	wallets  *WalletServiceImpl
	orders   *OrderServiceImpl
	shops    *ShopServiceImpl
	cache    *mapCache
	events   *eventRecorder
	customer domain.User
	shop     domain.Shop
	burger   domain.MenuItem // 50.00
	pizza    domain.MenuItem // 30.00
}

func testConfig() *config.Config {
	return &config.Config{
		Pricing: config.PricingConfig{DeliveryFee: 25, ServiceFeeRate: 0.05},
		Wallet:  config.WalletConfig{DefaultCurrency: "ZAR", PageSize: 20},
		Order: config.OrderConfig{
			EstimatedDelivery: 45 * time.Minute,
			PageSize:          10,
			IdempotencyTTL:    time.Hour,
			LookupConcurrency: 4,
		},
		Geo: config.GeoConfig{DefaultRadiusMeters: 20000, MaxRadiusMeters: 100000},
		Cleanup: config.CleanupConfig{
			ShopRetentionMonths:     36,
			MenuItemRetentionMonths: 24,
			UserRetentionMonths:     60,
		},
		Paystack: config.PaystackConfig{
			SecretKey:       "sk_test_webhook",
			CallbackURL:     "https://shipa.test/callback",
			WebhookDedupTTL: time.Hour,
		},
	}
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	cfg := testConfig()
	store := memory.New()
	now := time.Now().UTC()

	m := &marketplace{
		store:    store,
		cache:    newMapCache(),
		events:   &eventRecorder{},
		customer: domain.User{ID: uuid.New(), Name: "Thandi", Email: "thandi@shipa.test", IsActive: true, CreatedAt: now},
	}
	m.shop = domain.Shop{
		ID:       uuid.New(),
		Name:     "Braamfontein Grill",
		Location: geo.Point{Longitude: 28.0341, Latitude: -26.1929},
		IsActive: true,
	}
	m.burger = domain.MenuItem{ID: uuid.New(), ShopID: m.shop.ID, Name: "Burger", Price: decimal.NewFromInt(50), IsAvailable: true}
	m.pizza = domain.MenuItem{ID: uuid.New(), ShopID: m.shop.ID, Name: "Pizza", Price: decimal.NewFromInt(30), IsAvailable: true}

	store.PutUser(m.customer)
	store.PutShop(m.shop)
	store.PutMenuItem(m.burger)
	store.PutMenuItem(m.pizza)

	walletRepo := memory.NewWalletRepo(store)
	m.wallets = NewWalletService(walletRepo, memory.NewTransactionRepo(store), memory.NewUserRepo(store),
		store, cfg.Wallet, nil, zerolog.Nop())
	m.orders = NewOrderService(
		memory.NewOrderRepo(store), memory.NewShopRepo(store), memory.NewMenuItemRepo(store), walletRepo,
		m.wallets, NewPricingEngine(cfg.Pricing), store, m.cache, m.events,
		cfg.Order, nil, zerolog.Nop(),
	)
	m.shops = NewShopService(memory.NewShopRepo(store), cfg.Geo, zerolog.Nop())
	return m
}

// fund creates the customer's wallet holding balance.
func (m *marketplace) fund(t *testing.T, balance int64) *domain.Wallet {
	t.Helper()
	w, err := m.wallets.GetOrCreate(context.Background(), m.customer.ID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = m.wallets.Credit(context.Background(), ports.WalletMutation{
			WalletID:    w.ID,
			Amount:      decimal.NewFromInt(balance),
			Description: "seed",
			Reference:   "seed-" + uuid.NewString(),
		})
		require.NoError(t, err)
	}
	return w
}

func (m *marketplace) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := m.wallets.GetByUser(context.Background(), m.customer.ID)
	require.NoError(t, err)
	return w.Balance
}

// standardOrder is a burger plus a pizza with a +10 customization: 119.50 total.
func (m *marketplace) standardOrder(method domain.PaymentMethod) ports.PlaceOrderRequest {
	return ports.PlaceOrderRequest{
		CustomerID: m.customer.ID,
		ShopID:     m.shop.ID,
		Items: []ports.OrderLine{
			{MenuItemID: m.burger.ID, Quantity: 1},
			{MenuItemID: m.pizza.ID, Quantity: 1, Customizations: []domain.Customization{
				{Name: "Extra cheese", Option: "yes", Price: decimal.NewFromInt(10)},
			}},
		},
		DeliveryAddress: &domain.Address{Street: "1 Jorissen St", City: "Johannesburg"},
		PaymentMethod:   method,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
