package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a node in the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusReady},
	OrderStatusReady:      {OrderStatusDelivering},
	OrderStatusDelivering: {OrderStatusCompleted},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusDelivering, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCancellable is true only before the shop starts preparing.
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// PaymentMethod is how an order, or a wallet movement, is funded.
type PaymentMethod string

const (
	PaymentMethodWallet   PaymentMethod = "wallet"
	PaymentMethodPaystack PaymentMethod = "paystack"
	PaymentMethodCash     PaymentMethod = "cash"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodWallet || m == PaymentMethodPaystack || m == PaymentMethodCash
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Customization is an add-on chosen for a line, charged per unit.
type Customization struct {
	Name   string          `json:"name"`
	Option string          `json:"option"`
	Price  decimal.Decimal `json:"price"`
}

// OrderItem is a priced line. Name and Price are copied from the menu when
// the order is placed and never follow later menu edits.
type OrderItem struct {
	MenuItemID     uuid.UUID       `json:"menu_item_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Customizations []Customization `json:"customizations"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Address struct {
	Street      string       `json:"street"`
	City        string       `json:"city"`
	State       string       `json:"state,omitempty"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Order struct {
	ID                    uuid.UUID       `json:"id"`
	OrderNumber           string          `json:"order_number"`
	CustomerID            uuid.UUID       `json:"customer_id"`
	ShopID                uuid.UUID       `json:"shop_id"`
	Items                 []OrderItem     `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	ServiceFee            decimal.Decimal `json:"service_fee"`
	Total                 decimal.Decimal `json:"total"`
	Status                OrderStatus     `json:"status"`
	PaymentMethod         PaymentMethod   `json:"payment_method"`
	PaymentStatus         PaymentStatus   `json:"payment_status"`
	PaymentReference      string          `json:"payment_reference,omitempty"`
	DeliveryAddress       Address         `json:"delivery_address"`
	DeliveryInstructions  string          `json:"delivery_instructions,omitempty"`
	Notes                 string          `json:"notes,omitempty"`
	CancelReason          string          `json:"cancel_reason,omitempty"`
	IdempotencyKey        string          `json:"-"` // client Idempotency-Key, unique per customer
	EstimatedDeliveryTime time.Time       `json:"estimated_delivery_time"`
	ActualDeliveryTime    *time.Time      `json:"actual_delivery_time,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsWalletSettled is true when the order was paid from the customer's wallet.
func (o *Order) IsWalletSettled() bool {
	return o.PaymentMethod == PaymentMethodWallet && o.PaymentStatus == PaymentStatusPaid
}

// PriceBreakdown is the output of pricing an order.
type PriceBreakdown struct {
	Items       []OrderItem
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Total       decimal.Decimal
}

// NewOrderNumber returns ORD-<unix millis>-<10 hex chars>. The orders table
// enforces uniqueness, so a collision fails the insert rather than duplicating.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}
