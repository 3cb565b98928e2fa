package service

import (
	"testing"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pricingMenu() (domain.MenuItem, domain.MenuItem, map[uuid.UUID]domain.MenuItem) {
	burger := domain.MenuItem{ID: uuid.New(), Name: "Burger", Price: dec("50"), IsAvailable: true}
	pizza := domain.MenuItem{ID: uuid.New(), Name: "Pizza", Price: dec("30"), IsAvailable: true}
	return burger, pizza, map[uuid.UUID]domain.MenuItem{burger.ID: burger, pizza.ID: pizza}
}

func TestPricingEngine_Price_WithCustomization(t *testing.T) {
	engine := NewPricingEngine(config.PricingConfig{DeliveryFee: 25, ServiceFeeRate: 0.05})
	burger, pizza, menu := pricingMenu()

	priced, err := engine.Price([]ports.OrderLine{
		{MenuItemID: burger.ID, Quantity: 1},
		{MenuItemID: pizza.ID, Quantity: 1, Customizations: []domain.Customization{
			{Name: "Extra cheese", Option: "yes", Price: dec("10")},
		}},
	}, menu)
	require.NoError(t, err)

	assert.True(t, priced.Subtotal.Equal(dec("90")), "subtotal %s", priced.Subtotal)
	assert.True(t, priced.ServiceFee.Equal(dec("4.5")), "service fee %s", priced.ServiceFee)
	assert.True(t, priced.DeliveryFee.Equal(dec("25")))
	assert.True(t, priced.Total.Equal(dec("119.5")), "total %s", priced.Total)

	require.Len(t, priced.Items, 2)
	assert.Equal(t, "Pizza", priced.Items[1].Name)
	assert.True(t, priced.Items[1].Subtotal.Equal(dec("40")))
}

func TestPricingEngine_Price_CustomizationsScaleWithQuantity(t *testing.T) {
	engine := NewPricingEngine(config.PricingConfig{DeliveryFee: 25, ServiceFeeRate: 0.05})
	_, pizza, menu := pricingMenu()

	priced, err := engine.Price([]ports.OrderLine{
		{MenuItemID: pizza.ID, Quantity: 3, Customizations: []domain.Customization{
			{Name: "Olives", Price: dec("2.5")},
		}},
	}, menu)
	require.NoError(t, err)

	// (30 + 2.5) * 3
	assert.True(t, priced.Subtotal.Equal(dec("97.5")))
	assert.True(t, priced.ServiceFee.Equal(dec("4.88")), "service fee rounds to cents, got %s", priced.ServiceFee)
	assert.True(t, priced.Total.Equal(priced.Subtotal.Add(priced.DeliveryFee).Add(priced.ServiceFee)))
}

func TestPricingEngine_Price_Errors(t *testing.T) {
	engine := NewPricingEngine(config.PricingConfig{DeliveryFee: 25, ServiceFeeRate: 0.05})
	burger, _, menu := pricingMenu()
	soldOut := domain.MenuItem{ID: uuid.New(), Name: "Soup", Price: dec("20"), IsAvailable: false}
	menu[soldOut.ID] = soldOut

	tests := []struct {
		name  string
		lines []ports.OrderLine
		code  string
	}{
		{"empty", nil, apperror.CodeValidation},
		{"zero quantity", []ports.OrderLine{{MenuItemID: burger.ID, Quantity: 0}}, apperror.CodeValidation},
		{"unknown item", []ports.OrderLine{{MenuItemID: uuid.New(), Quantity: 1}}, apperror.CodeNotFound},
		{"unavailable item", []ports.OrderLine{{MenuItemID: soldOut.ID, Quantity: 1}}, apperror.CodeItemUnavailable},
		{"negative customization", []ports.OrderLine{{MenuItemID: burger.ID, Quantity: 1, Customizations: []domain.Customization{
			{Name: "Discount", Price: decimal.NewFromInt(-5)},
		}}}, apperror.CodeValidation},
		{"sub-cent customization", []ports.OrderLine{{MenuItemID: burger.ID, Quantity: 1, Customizations: []domain.Customization{
			{Name: "Sauce", Price: dec("0.333")},
		}}}, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priced, err := engine.Price(tt.lines, menu)
			assert.Nil(t, priced)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestPricingEngine_Price_ServiceFeeRoundsHalfCentUp(t *testing.T) {
	engine := NewPricingEngine(config.PricingConfig{DeliveryFee: 25, ServiceFeeRate: 0.05})
	item := domain.MenuItem{ID: uuid.New(), Name: "Vetkoek", Price: dec("10.10"), IsAvailable: true}

	priced, err := engine.Price([]ports.OrderLine{{MenuItemID: item.ID, Quantity: 1}},
		map[uuid.UUID]domain.MenuItem{item.ID: item})
	require.NoError(t, err)

	// 5% of 10.10 is 0.505.
	assert.True(t, priced.ServiceFee.Equal(dec("0.51")), "service fee %s", priced.ServiceFee)
	assert.True(t, priced.Total.Equal(dec("35.61")), "total %s", priced.Total)
	assert.True(t, domain.IsWholeCents(priced.Total))
}

func TestPricingEngine_Price_UnavailableNamesItem(t *testing.T) {
	engine := NewPricingEngine(config.PricingConfig{})
	soldOut := domain.MenuItem{ID: uuid.New(), Name: "Soup", Price: dec("20")}

	_, err := engine.Price([]ports.OrderLine{{MenuItemID: soldOut.ID, Quantity: 1}},
		map[uuid.UUID]domain.MenuItem{soldOut.ID: soldOut})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Soup")
}
