package dto

import (
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Orders ---

type CustomizationRequest struct {
	Name   string          `json:"name" binding:"required,max=100"`
	Option string          `json:"option" binding:"max=100"`
	Price  decimal.Decimal `json:"price"`
}

type OrderItemRequest struct {
	MenuItemID     uuid.UUID              `json:"menu_item_id" binding:"required"`
	Quantity       int                    `json:"quantity" binding:"required,min=1,max=100"`
	Customizations []CustomizationRequest `json:"customizations" binding:"omitempty,max=20,dive"`
}

type CoordinatesRequest struct {
	Lat float64 `json:"lat" binding:"latitude"`
	Lng float64 `json:"lng" binding:"longitude"`
}

type AddressRequest struct {
	Street      string              `json:"street" binding:"required,max=200"`
	City        string              `json:"city" binding:"required,max=100"`
	State       string              `json:"state" binding:"max=100"`
	Country     string              `json:"country" binding:"max=100"`
	Coordinates *CoordinatesRequest `json:"coordinates"`
}

// PlaceOrderRequest is the request body for POST /orders.
type PlaceOrderRequest struct {
	CustomerID           uuid.UUID          `json:"customer_id" binding:"required"`
	ShopID               uuid.UUID          `json:"shop_id" binding:"required"`
	Items                []OrderItemRequest `json:"items" binding:"required,min=1,max=50,dive"`
	DeliveryAddress      *AddressRequest    `json:"delivery_address" binding:"required"`
	DeliveryInstructions string             `json:"delivery_instructions" binding:"max=500"`
	Notes                string             `json:"notes" binding:"max=500"`
	PaymentMethod        string             `json:"payment_method" binding:"required,payment_method"`
}

// ToPort converts the body into the service request.
func (r PlaceOrderRequest) ToPort(idempotencyKey string) ports.PlaceOrderRequest {
	lines := make([]ports.OrderLine, len(r.Items))
	for i, item := range r.Items {
		custom := make([]domain.Customization, len(item.Customizations))
		for j, c := range item.Customizations {
			custom[j] = domain.Customization{Name: c.Name, Option: c.Option, Price: c.Price}
		}
		lines[i] = ports.OrderLine{MenuItemID: item.MenuItemID, Quantity: item.Quantity, Customizations: custom}
	}

	var address *domain.Address
	if a := r.DeliveryAddress; a != nil {
		address = &domain.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country}
		if a.Coordinates != nil {
			address.Coordinates = &domain.Coordinates{Lat: a.Coordinates.Lat, Lng: a.Coordinates.Lng}
		}
	}

	return ports.PlaceOrderRequest{
		CustomerID:           r.CustomerID,
		ShopID:               r.ShopID,
		Items:                lines,
		DeliveryAddress:      address,
		DeliveryInstructions: r.DeliveryInstructions,
		Notes:                r.Notes,
		PaymentMethod:        domain.PaymentMethod(r.PaymentMethod),
		IdempotencyKey:       idempotencyKey,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// OrderListQuery is the query string of the order listings.
type OrderListQuery struct {
	Status string `form:"status" binding:"omitempty,order_status"`
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=10" binding:"min=1,max=100"`
}

// --- Wallet ---

// WalletReloadRequest credits a wallet directly. PaymentReference, when
// given, becomes the ledger reference so that a retried reload is rejected.
type WalletReloadRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"payment_reference" binding:"omitempty,max=100,safe_id"`
	Description      string          `json:"description" binding:"max=200"`
}

type WalletDeductRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"max=200"`
}

type WalletBalanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type TransactionListQuery struct {
	Type  string `form:"type" binding:"omitempty,oneof=credit debit"`
	Page  int    `form:"page,default=1" binding:"min=1"`
	Limit int    `form:"limit,default=20" binding:"min=1,max=100"`
}

// --- Shops ---

// NearbyQuery is the query string of GET /shops/nearby. maxDistance is in meters.
type NearbyQuery struct {
	Longitude   *float64 `form:"longitude" binding:"required,longitude"`
	Latitude    *float64 `form:"latitude" binding:"required,latitude"`
	MaxDistance float64  `form:"maxDistance" binding:"omitempty,gt=0"`
	Sort        string   `form:"sort" binding:"omitempty,oneof=distance"`
}

// --- Payments ---

type InitializePaymentRequest struct {
	Email       string          `json:"email" binding:"required,email"`
	Amount      decimal.Decimal `json:"amount"`
	Metadata    map[string]any  `json:"metadata"`
	CallbackURL string          `json:"callback_url" binding:"omitempty,max=500,safe_url"`
}

type OrderPaymentRequest struct {
	OrderID     uuid.UUID `json:"order_id" binding:"required"`
	Email       string    `json:"email" binding:"required,email"`
	CallbackURL string    `json:"callback_url" binding:"omitempty,max=500,safe_url"`
}

type WalletReloadPaymentRequest struct {
	UserID      uuid.UUID       `json:"user_id" binding:"required"`
	Email       string          `json:"email" binding:"required,email"`
	Amount      decimal.Decimal `json:"amount"`
	CallbackURL string          `json:"callback_url" binding:"omitempty,max=500,safe_url"`
}

// --- Admin ---

// CleanupResponse aggregates the sweeps run by one cleanup call.
type CleanupResponse struct {
	Results      []domain.CleanupResult `json:"results"`
	TotalDeleted int64                  `json:"total_deleted"`
}
