package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Order     OrderConfig     `mapstructure:"order"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Paystack  PaystackConfig  `mapstructure:"paystack"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Security  SecurityConfig  `mapstructure:"security"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// PricingConfig carries the fee schedule applied to every order.
type PricingConfig struct {
	DeliveryFee    float64 `mapstructure:"delivery_fee"`
	ServiceFeeRate float64 `mapstructure:"service_fee_rate"`
}

type WalletConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
	PageSize        int    `mapstructure:"page_size"`
}

type OrderConfig struct {
	EstimatedDelivery time.Duration `mapstructure:"estimated_delivery"`
	PageSize          int           `mapstructure:"page_size"`
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl"`
	LookupConcurrency int           `mapstructure:"lookup_concurrency"`
}

type GeoConfig struct {
	DefaultRadiusMeters float64 `mapstructure:"default_radius_meters"`
	MaxRadiusMeters     float64 `mapstructure:"max_radius_meters"`
}

type PaystackConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	SecretKey       string        `mapstructure:"secret_key"`
	CallbackURL     string        `mapstructure:"callback_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	WebhookDedupTTL time.Duration `mapstructure:"webhook_dedup_ttl"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	OrderTopic   string        `mapstructure:"order_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether order events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.OrderTopic != ""
}

// CleanupConfig holds retention windows, in months, for deactivated records.
type CleanupConfig struct {
	ShopRetentionMonths     int `mapstructure:"shop_retention_months"`
	MenuItemRetentionMonths int `mapstructure:"menu_item_retention_months"`
	UserRetentionMonths     int `mapstructure:"user_retention_months"`
}

type RateLimitConfig struct {
	Enabled bool                     `mapstructure:"enabled"`
	Groups  map[string]RateLimitRule `mapstructure:"groups"`
}

type RateLimitRule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type SecurityConfig struct {
	AdminJWTSecret string        `mapstructure:"admin_jwt_secret"`
	AdminJWTExpiry time.Duration `mapstructure:"admin_jwt_expiry"`
	AdminJWTIssuer string        `mapstructure:"admin_jwt_issuer"`
}

type CORSConfig struct {
	AllowOrigins []string      `mapstructure:"allow_origins"`
	MaxAge       time.Duration `mapstructure:"max_age"`
}

// Load reads configuration from a .env file, a YAML file and environment variables.
// Environment variables override file values. Prefix: SHIPA_.
// Nested keys use underscore: SHIPA_DATABASE_HOST, SHIPA_PAYSTACK_SECRET_KEY, etc.
func Load(path string) (*Config, error) {
	// .env is optional and only fills variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "shipa")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "10s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("pricing.delivery_fee", 25.0)
	v.SetDefault("pricing.service_fee_rate", 0.05)
	v.SetDefault("wallet.default_currency", "ZAR")
	v.SetDefault("wallet.page_size", 20)
	v.SetDefault("order.estimated_delivery", "45m")
	v.SetDefault("order.page_size", 10)
	v.SetDefault("order.idempotency_ttl", "24h")
	v.SetDefault("order.lookup_concurrency", 8)
	v.SetDefault("geo.default_radius_meters", 20000.0)
	v.SetDefault("geo.max_radius_meters", 100000.0)
	v.SetDefault("paystack.base_url", "https://api.paystack.co")
	v.SetDefault("paystack.secret_key", "")
	v.SetDefault("paystack.callback_url", "")
	v.SetDefault("paystack.timeout", "10s")
	v.SetDefault("paystack.webhook_dedup_ttl", "48h")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.order_topic", "shipa.orders")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("cleanup.shop_retention_months", 36)
	v.SetDefault("cleanup.menu_item_retention_months", 24)
	v.SetDefault("cleanup.user_retention_months", 60)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("security.admin_jwt_secret", "")
	v.SetDefault("security.admin_jwt_expiry", "1h")
	v.SetDefault("security.admin_jwt_issuer", "shipa-backend")
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.max_age", "12h")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// SHIPA_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SHIPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
