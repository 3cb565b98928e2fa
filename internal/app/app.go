// Package app assembles services and the HTTP router from configuration and
// the infrastructure chosen by the caller.
package app

import (
	"shipa-backend/config"
	httpHandler "shipa-backend/internal/adapter/http/handler"
	"shipa-backend/internal/adapter/http/middleware"
	"shipa-backend/internal/adapter/storage/memory"
	"shipa-backend/internal/adapter/storage/postgres"
	redisStorage "shipa-backend/internal/adapter/storage/redis"
	"shipa-backend/internal/core/ports"
	"shipa-backend/internal/service"
	"shipa-backend/pkg/logger"
	"shipa-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Repositories bundles one implementation of every repository port.
type Repositories struct {
	Wallets      ports.WalletRepository
	Transactions ports.TransactionRepository
	Orders       ports.OrderRepository
	Shops        ports.ShopRepository
	MenuItems    ports.MenuItemRepository
	Users        ports.UserRepository
	Audits       ports.AuditRepository
	Transactor   ports.DBTransactor
}

func PostgresRepositories(pool postgres.Pool) Repositories {
	return Repositories{
		Wallets:      postgres.NewWalletRepo(pool),
		Transactions: postgres.NewTransactionRepo(pool),
		Orders:       postgres.NewOrderRepo(pool),
		Shops:        postgres.NewShopRepo(pool),
		MenuItems:    postgres.NewMenuItemRepo(pool),
		Users:        postgres.NewUserRepo(pool),
		Audits:       postgres.NewAuditRepo(pool),
		Transactor:   postgres.NewTransactor(pool),
	}
}

func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Wallets:      memory.NewWalletRepo(store),
		Transactions: memory.NewTransactionRepo(store),
		Orders:       memory.NewOrderRepo(store),
		Shops:        memory.NewShopRepo(store),
		MenuItems:    memory.NewMenuItemRepo(store),
		Users:        memory.NewUserRepo(store),
		Audits:       memory.NewAuditRepo(store),
		Transactor:   store,
	}
}

// Infra is the external plumbing the services run on.
type Infra struct {
	Repos          Repositories
	Redis          goredis.UniversalClient
	Gateway        ports.PaymentGateway
	Events         ports.EventPublisher
	Metrics        *metrics.Metrics // nil = not recorded
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte
}

// Services holds the wired business services.
type Services struct {
	Wallets  *service.WalletServiceImpl
	Orders   *service.OrderServiceImpl
	Shops    *service.ShopServiceImpl
	Payments *service.PaymentServiceImpl
	Cleanup  *service.CleanupServiceImpl
	Tokens   *service.JWTTokenService
	Audit    ports.AuditService
}

func NewServices(cfg *config.Config, infra Infra, log zerolog.Logger) *Services {
	repos := infra.Repos

	wallets := service.NewWalletService(
		repos.Wallets, repos.Transactions, repos.Users, repos.Transactor,
		cfg.Wallet, infra.Metrics, logger.Component(log, "wallet"),
	)
	orders := service.NewOrderService(
		repos.Orders, repos.Shops, repos.MenuItems, repos.Wallets,
		wallets, service.NewPricingEngine(cfg.Pricing), repos.Transactor,
		redisStorage.NewIdempotencyCache(infra.Redis), infra.Events,
		cfg.Order, infra.Metrics, logger.Component(log, "order"),
	)
	payments := service.NewPaymentService(
		infra.Gateway, service.NewHMACSignatureService(), redisStorage.NewProcessedEventStore(infra.Redis),
		orders, wallets, cfg.Paystack, infra.Metrics, logger.Component(log, "payment"),
	)

	return &Services{
		Wallets:  wallets,
		Orders:   orders,
		Shops:    service.NewShopService(repos.Shops, cfg.Geo, logger.Component(log, "geo")),
		Payments: payments,
		Cleanup:  service.NewCleanupService(repos.Shops, repos.MenuItems, repos.Users, cfg.Cleanup, logger.Component(log, "cleanup")),
		Tokens:   service.NewJWTTokenService(cfg.Security.AdminJWTSecret, cfg.Security.AdminJWTExpiry, cfg.Security.AdminJWTIssuer),
		Audit:    service.NewAuditService(repos.Audits, logger.Component(log, "audit")),
	}
}

// NewRouter wires every service and returns the HTTP handler.
func NewRouter(cfg *config.Config, infra Infra, log zerolog.Logger) *gin.Engine {
	svcs := NewServices(cfg, infra, log)

	var limiter middleware.Limiter
	if infra.Redis != nil {
		limiter = redisStorage.NewRateLimitStore(infra.Redis)
	}

	return httpHandler.SetupRouter(httpHandler.RouterDeps{
		OrderSvc:       svcs.Orders,
		WalletSvc:      svcs.Wallets,
		ShopSvc:        svcs.Shops,
		PaymentSvc:     svcs.Payments,
		CleanupSvc:     svcs.Cleanup,
		TokenSvc:       svcs.Tokens,
		AuditSvc:       svcs.Audit,
		Limiter:        limiter,
		HealthCheckers: infra.HealthCheckers,
		Metrics:        infra.Metrics,
		OpenAPISpec:    infra.OpenAPISpec,
		Server:         cfg.Server,
		RateLimit:      cfg.RateLimit,
		CORS:           cfg.CORS,
		Logger:         log,
	})
}
