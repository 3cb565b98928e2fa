package handler

import (
	"shipa-backend/config"
	"shipa-backend/internal/adapter/http/middleware"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/metrics"
	"shipa-backend/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	OrderSvc   ports.OrderService
	WalletSvc  ports.WalletService
	ShopSvc    ports.ShopService
	PaymentSvc ports.PaymentService
	CleanupSvc ports.CleanupService
	TokenSvc   ports.TokenService
	AuditSvc   ports.AuditService // nil = audit logging disabled
	Limiter    middleware.Limiter // nil = rate limiting disabled

	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics
	OpenAPISpec    []byte

	Server    config.ServerConfig
	RateLimit config.RateLimitConfig
	CORS      config.CORSConfig
	Logger    zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Server.Mode != "" {
		gin.SetMode(deps.Server.Mode)
	}
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(corsMiddleware(deps.CORS))
	r.Use(middleware.MaxBodySize(deps.Server.MaxBodyBytes))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.ErrNotFound("Route"))
	})

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	swagger := NewSwaggerHandler(deps.OpenAPISpec)
	r.GET("/swagger", swagger.UI)
	r.GET("/swagger/spec", swagger.Spec)

	rules := middleware.RateLimitRules(deps.RateLimit)
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.Limiter == nil || !deps.RateLimit.Enabled || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.Limiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	shopHandler := NewShopHandler(deps.ShopSvc)
	shops := v1.Group("/shops", rl("search"))
	{
		shops.GET("/nearby", shopHandler.Nearby)
	}

	orderHandler := NewOrderHandler(deps.OrderSvc)
	orders := v1.Group("/orders", rl("orders"))
	{
		orders.POST("", orderHandler.PlaceOrder)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/customer/:customerId", orderHandler.ListByCustomer)
		orders.GET("/shop/:shopId", orderHandler.ListByShop)
		orders.PUT("/:id/status", orderHandler.UpdateStatus)
		orders.PUT("/:id/cancel", orderHandler.CancelOrder)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet/:userId", rl("wallet"))
	{
		wallet.GET("", walletHandler.GetOrCreate)
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.POST("/reload", walletHandler.Reload)
		wallet.POST("/deduct", walletHandler.Deduct)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payment := v1.Group("/payment")
	{
		payment.POST("/initialize", rl("payment"), paymentHandler.Initialize)
		payment.GET("/verify/:reference", rl("payment"), paymentHandler.Verify)
		payment.POST("/order", rl("payment"), paymentHandler.InitializeOrder)
		payment.POST("/wallet/reload", rl("payment"), paymentHandler.InitializeWalletReload)
		payment.POST("/webhook", rl("webhook"), paymentHandler.Webhook)
	}

	adminHandler := NewAdminHandler(deps.CleanupSvc)
	admin := v1.Group("/admin", middleware.AdminAuth(deps.TokenSvc, deps.Logger), rl("admin"))
	{
		admin.POST("/cleanup/all", adminHandler.CleanupAll)
		admin.POST("/cleanup/shops", adminHandler.CleanupShops)
		admin.POST("/cleanup/menu-items", adminHandler.CleanupMenuItems)
		admin.POST("/cleanup/users", adminHandler.CleanupUsers)
	}

	return r
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", HeaderIdempotencyKey, middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        cfg.MaxAge,
	}
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(cc)
}
