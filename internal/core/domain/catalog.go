package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shipa-backend/pkg/geo"
)

type Shop struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Address       Address    `json:"address"`
	Location      geo.Point  `json:"location"`
	Phone         string     `json:"phone,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	Rating        float64    `json:"rating"`
	IsActive      bool       `json:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ShopWithDistance is a search hit annotated with its distance from the query point.
type ShopWithDistance struct {
	Shop
	DistanceKm float64 `json:"distance"`
}

type MenuItem struct {
	ID            uuid.UUID       `json:"id"`
	ShopID        uuid.UUID       `json:"shop_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category,omitempty"`
	IsAvailable   bool            `json:"is_available"`
	DeactivatedAt *time.Time      `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type User struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	IsActive      bool       `json:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
