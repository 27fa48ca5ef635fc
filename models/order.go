package models

import (
	"fmt"
	"time"

	"gofalre.io/orders/models/enum"
)

// Order 代表訂單
type Order struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Status        enum.OrderStatus   `json:"status"`
	PaymentMethod enum.PaymentMethod `json:"payment_method"`
	Items         []OrderItem        `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// OrderItem 代表訂單中的單個商品項目。項目在創建後不可變。
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("order id is required")
	}
	if o.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid order status: %s", o.Status)
	}
	if !o.PaymentMethod.Valid() {
		return fmt.Errorf("invalid payment method: %s", o.PaymentMethod)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("order must contain at least one item")
	}
	for _, item := range o.Items {
		if item.ProductID == "" {
			return fmt.Errorf("order item product id is required")
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("order item quantity must be positive, got %d for product %s", item.Quantity, item.ProductID)
		}
	}
	return nil
}

// ProductQuantities flattens the item list into the product -> quantity map
// carried by stock events.
func (o *Order) ProductQuantities() map[string]int {
	quantities := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		quantities[item.ProductID] += item.Quantity
	}
	return quantities
}
