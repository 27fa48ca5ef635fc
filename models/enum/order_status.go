package enum

// OrderStatus 表示訂單的狀態
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"    // 訂單已創建，等待庫存保留
	OrderStatusProcessing OrderStatus = "PROCESSING" // 訂單處理中
	OrderStatusShipped    OrderStatus = "SHIPPED"    // 訂單已發貨
	OrderStatusDelivered  OrderStatus = "DELIVERED"  // 訂單已送達（終態）
	OrderStatusCancelled  OrderStatus = "CANCELLED"  // 訂單取消（終態）
)

// statusRank fixes the forward order PENDING < PROCESSING < SHIPPED < DELIVERED.
// CANCELLED is a side state and carries no rank.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

func (s OrderStatus) Valid() bool {
	if _, ok := statusRank[s]; ok {
		return true
	}
	return s == OrderStatusCancelled
}

// Terminal reports whether the status is absorbing: no transition may leave it.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Cancellable reports whether an order in this status may still be cancelled,
// either by a user/admin or by stock-failure compensation.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// AtOrPast reports whether s is already at or past target in the forward order.
// Duplicate or replayed stage signals hit this check and become no-ops.
func (s OrderStatus) AtOrPast(target OrderStatus) bool {
	sr, ok := statusRank[s]
	if !ok {
		return false
	}
	tr, ok := statusRank[target]
	if !ok {
		return false
	}
	return sr >= tr
}

// Next returns the next forward status, false when s is terminal or CANCELLED.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusPending:
		return OrderStatusProcessing, true
	case OrderStatusProcessing:
		return OrderStatusShipped, true
	case OrderStatusShipped:
		return OrderStatusDelivered, true
	default:
		return "", false
	}
}
