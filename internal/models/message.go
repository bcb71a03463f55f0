package models

import "time"

// StatusUpdateMessage represents a status change notification published
// whenever an order moves along its lifecycle
type StatusUpdateMessage struct {
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	OldStatus    string    `json:"old_status"`
	NewStatus    string    `json:"new_status"`
	ChangedBy    string    `json:"changed_by"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewStatusUpdateMessage creates a StatusUpdateMessage for an order status change
func NewStatusUpdateMessage(order *Order, oldStatus OrderStatus, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		OldStatus:    string(oldStatus),
		NewStatus:    string(order.Status),
		ChangedBy:    changedBy,
		Timestamp:    time.Now().UTC(),
	}
}

// StatusRoutingKey generates the routing key for a status update event
func StatusRoutingKey(status OrderStatus) string {
	return "orders.status." + string(status)
}
