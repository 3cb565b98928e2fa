package service

import (
	"fmt"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingEngine implements ports.PricingEngine.
type PricingEngine struct {
	deliveryFee    decimal.Decimal
	serviceFeeRate decimal.Decimal
}

// NewPricingEngine creates a PricingEngine from the configured fee schedule.
func NewPricingEngine(cfg config.PricingConfig) *PricingEngine {
	return &PricingEngine{
		deliveryFee:    decimal.NewFromFloat(cfg.DeliveryFee),
		serviceFeeRate: decimal.NewFromFloat(cfg.ServiceFeeRate),
	}
}

// Price computes line snapshots and order totals. Service fee is rounded
// half away from zero to cents, so 5% of 10.10 is 0.51 and
// total == subtotal + delivery fee + service fee exactly.
func (p *PricingEngine) Price(lines []ports.OrderLine, menu map[uuid.UUID]domain.MenuItem) (*domain.PriceBreakdown, error) {
	if len(lines) == 0 {
		return nil, apperror.Validation("order must contain at least one item")
	}

	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero

	for i, line := range lines {
		if line.Quantity < 1 {
			return nil, apperror.Validation(fmt.Sprintf("items[%d]: quantity must be at least 1", i))
		}

		mi, ok := menu[line.MenuItemID]
		if !ok {
			return nil, apperror.ErrNotFound(fmt.Sprintf("Menu item %s", line.MenuItemID))
		}
		if !mi.IsAvailable {
			return nil, apperror.ErrItemUnavailable(mi.Name)
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		lineTotal := mi.Price.Mul(qty)

		customizations := make([]domain.Customization, len(line.Customizations))
		for j, c := range line.Customizations {
			if c.Price.IsNegative() {
				return nil, apperror.Validation(fmt.Sprintf("items[%d].customizations[%d]: price must not be negative", i, j))
			}
			if !domain.IsWholeCents(c.Price) {
				return nil, apperror.Validation(fmt.Sprintf("items[%d].customizations[%d]: price must have at most two decimal places", i, j))
			}
			customizations[j] = c
			lineTotal = lineTotal.Add(c.Price.Mul(qty))
		}

		items = append(items, domain.OrderItem{
			MenuItemID:     mi.ID,
			Name:           mi.Name,
			Price:          mi.Price,
			Quantity:       line.Quantity,
			Customizations: customizations,
			Subtotal:       lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	serviceFee := subtotal.Mul(p.serviceFeeRate).Round(2)

	return &domain.PriceBreakdown{
		Items:       items,
		Subtotal:    subtotal,
		DeliveryFee: p.deliveryFee,
		ServiceFee:  serviceFee,
		Total:       subtotal.Add(p.deliveryFee).Add(serviceFee),
	}, nil
}
