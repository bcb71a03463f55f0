package models

import (
	"time"

	"github.com/shopspring/decimal"

	"fulfillment-system/internal/apperr"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusCheckout   OrderStatus = "checkout"
	StatusPaid       OrderStatus = "paid"
	StatusInProgress OrderStatus = "in_progress"
	StatusReady      OrderStatus = "ready"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	StatusCheckout:   {},
	StatusPaid:       {},
	StatusInProgress: {},
	StatusReady:      {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// ToOrderStatus parses a status string, rejecting unknown values
func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}
	return "", apperr.New(apperr.KindInvalidInput, "invalid order status: %s", s)
}

// workerTransitionSource maps a requested target status to the status the order
// must currently be in. Targets outside this table are not reachable through the
// worker panel.
var workerTransitionSource = map[OrderStatus]OrderStatus{
	StatusInProgress: StatusPaid,
	StatusReady:      StatusInProgress,
	StatusCompleted:  StatusReady,
}

// RequiredCurrentStatus returns the status an order must have before a worker
// may transition it to target
func RequiredCurrentStatus(target OrderStatus) (OrderStatus, error) {
	required, ok := workerTransitionSource[target]
	if !ok {
		return "", apperr.New(apperr.KindIllegalTransition, "incorrect state to transition: %s", target)
	}
	return required, nil
}

// CancellableStatuses lists the states a customer may cancel an order from.
// Orders past PAID are already being prepared and stay in the pipeline.
var CancellableStatuses = map[OrderStatus]struct{}{
	StatusCheckout: {},
	StatusPaid:     {},
}

// Order is a customer's selected dish quantities for one restaurant,
// with computed prices and lifecycle status
type Order struct {
	ID              string          `json:"id,omitempty"`
	UserID          string          `json:"user_id"`
	RestaurantID    string          `json:"restaurant_id"`
	Items           map[string]int  `json:"order_items"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	DiscountedPrice decimal.Decimal `json:"total_price_including_special_offers"`
	Status          OrderStatus     `json:"status"`
	PointsUsed      int             `json:"points_used"`
	PointsEarned    int             `json:"points_earned"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateOrderRequest represents the request to create a new order
type CreateOrderRequest struct {
	Items        map[string]int `json:"order_items"`
	RestaurantID string         `json:"restaurant_id"`
}

// Validate checks structural validity of the create request
func (req *CreateOrderRequest) Validate() error {
	if req.RestaurantID == "" {
		return apperr.New(apperr.KindInvalidInput, "restaurant_id is required")
	}
	return validateItems(req.Items)
}

// UpdateOrderRequest replaces the item set of a checkout order
type UpdateOrderRequest struct {
	ID    string         `json:"id"`
	Items map[string]int `json:"order_items"`
}

func (req *UpdateOrderRequest) Validate() error {
	if req.ID == "" {
		return apperr.New(apperr.KindInvalidInput, "id is required")
	}
	return validateItems(req.Items)
}

// PayOrderRequest finalizes a checkout order, optionally spending loyalty points
type PayOrderRequest struct {
	ID            string `json:"id"`
	Points        int    `json:"points"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func (req *PayOrderRequest) Validate() error {
	if req.ID == "" {
		return apperr.New(apperr.KindInvalidInput, "id is required")
	}
	if req.Points < 0 {
		return apperr.New(apperr.KindInvalidInput, "points must not be negative")
	}
	return nil
}

// CancelOrderRequest cancels a checkout or paid order
type CancelOrderRequest struct {
	ID string `json:"id"`
}

func (req *CancelOrderRequest) Validate() error {
	if req.ID == "" {
		return apperr.New(apperr.KindInvalidInput, "id is required")
	}
	return nil
}

// TransitionOrderStatusRequest moves an order along the preparation pipeline
type TransitionOrderStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (req *TransitionOrderStatusRequest) Validate() error {
	if req.ID == "" {
		return apperr.New(apperr.KindInvalidInput, "id is required")
	}
	if _, err := ToOrderStatus(req.Status); err != nil {
		return err
	}
	return nil
}

const maxOrderItems = 20

func validateItems(items map[string]int) error {
	if len(items) > maxOrderItems {
		return apperr.New(apperr.KindInvalidInput, "order cannot contain more than %d distinct dishes", maxOrderItems)
	}
	for dishID, quantity := range items {
		if dishID == "" {
			return apperr.New(apperr.KindInvalidInput, "dish id must not be empty")
		}
		if quantity <= 0 {
			return apperr.New(apperr.KindInvalidInput, "quantity for dish %s must be positive", dishID)
		}
	}
	return nil
}
