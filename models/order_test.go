package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofalre.io/orders/models/enum"
)

func validOrder() *Order {
	return &Order{
		ID:            "order-1",
		UserID:        "user-1",
		Status:        enum.OrderStatusPending,
		PaymentMethod: enum.PaymentMethodPix,
		Items: []OrderItem{
			{ProductID: "product-1", Quantity: 2},
			{ProductID: "product-2", Quantity: 1},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestOrderValidate(t *testing.T) {
	require.NoError(t, validOrder().Validate())

	tests := []struct {
		name   string
		mutate func(*Order)
	}{
		{"missing id", func(o *Order) { o.ID = "" }},
		{"missing user id", func(o *Order) { o.UserID = "" }},
		{"invalid status", func(o *Order) { o.Status = "REFUNDED" }},
		{"invalid payment method", func(o *Order) { o.PaymentMethod = "BARTER" }},
		{"no items", func(o *Order) { o.Items = nil }},
		{"item missing product id", func(o *Order) { o.Items[0].ProductID = "" }},
		{"zero quantity", func(o *Order) { o.Items[0].Quantity = 0 }},
		{"negative quantity", func(o *Order) { o.Items[1].Quantity = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(order)
			assert.Error(t, order.Validate())
		})
	}
}

func TestOrderProductQuantities(t *testing.T) {
	order := validOrder()
	order.Items = append(order.Items, OrderItem{ProductID: "product-1", Quantity: 5})

	assert.Equal(t, map[string]int{"product-1": 7, "product-2": 1}, order.ProductQuantities())
}
