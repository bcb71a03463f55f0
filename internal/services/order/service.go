// Package order implements the customer-facing order engine: pricing,
// menu-membership validation and the create/update/pay/cancel orchestration.
package order

import (
	"context"
	"time"

	"github.com/samber/lo"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/logger"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/services/loyalty"
	"fulfillment-system/internal/services/stock"
	"fulfillment-system/internal/storage"
)

// StatusPublisher publishes order status change events
type StatusPublisher interface {
	PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error
}

// Service orchestrates order creation, mutation and payment
type Service struct {
	store     storage.Store
	stock     *stock.Ledger
	loyalty   *loyalty.Ledger
	publisher StatusPublisher
	logger    *logger.Logger
}

// NewService creates the order orchestrator. publisher may be nil when no
// event stream is configured.
func NewService(store storage.Store, stockLedger *stock.Ledger, loyaltyLedger *loyalty.Ledger,
	publisher StatusPublisher, log *logger.Logger) *Service {

	return &Service{
		store:     store,
		stock:     stockLedger,
		loyalty:   loyaltyLedger,
		publisher: publisher,
		logger:    log,
	}
}

// Create validates restaurant and menu membership, prices the items and
// persists a new checkout order
func (s *Service) Create(ctx context.Context, req *models.CreateOrderRequest, user models.User, requestID string) (models.Order, error) {
	if err := req.Validate(); err != nil {
		return models.Order{}, err
	}

	if _, err := s.store.GetRestaurant(ctx, req.RestaurantID); err != nil {
		return models.Order{}, err
	}
	if err := ValidateMembership(ctx, s.store, req.RestaurantID, lo.Keys(req.Items)); err != nil {
		return models.Order{}, err
	}

	quote, err := ComputePrices(ctx, s.store, req.Items, req.RestaurantID, user)
	if err != nil {
		return models.Order{}, err
	}

	now := time.Now().UTC()
	order := models.Order{
		UserID:          user.ID,
		RestaurantID:    req.RestaurantID,
		Items:           req.Items,
		TotalPrice:      quote.TotalPrice,
		DiscountedPrice: quote.DiscountedPrice,
		Status:          models.StatusCheckout,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	order.ID, err = s.store.InsertOrder(ctx, order)
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order_created", "Created checkout order", requestID, map[string]interface{}{
		"order_id":      order.ID,
		"restaurant_id": order.RestaurantID,
		"total_price":   order.TotalPrice.String(),
	})
	return order, nil
}

// UpdateItems replaces the item set of a checkout order and reprices it
func (s *Service) UpdateItems(ctx context.Context, req *models.UpdateOrderRequest, user models.User, requestID string) (models.Order, error) {
	if err := req.Validate(); err != nil {
		return models.Order{}, err
	}

	order, err := ValidateOrder(ctx, s.store, req.ID, models.StatusCheckout, user.ID)
	if err != nil {
		return models.Order{}, err
	}

	if err := ValidateMembership(ctx, s.store, order.RestaurantID, lo.Keys(req.Items)); err != nil {
		return models.Order{}, err
	}

	quote, err := ComputePrices(ctx, s.store, req.Items, order.RestaurantID, user)
	if err != nil {
		return models.Order{}, err
	}

	order.Items = req.Items
	order.TotalPrice = quote.TotalPrice
	order.DiscountedPrice = quote.DiscountedPrice
	order.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// Pay finalizes a checkout order: it reprices against the current catalog,
// reserves stock, applies loyalty points and marks the order paid.
//
// The checkout-to-paid swap is the commit marker and runs as an atomic
// conditional write, so a retried payment call is rejected instead of
// decrementing stock twice.
func (s *Service) Pay(ctx context.Context, req *models.PayOrderRequest, user models.User, requestID string) (models.Order, error) {
	if err := req.Validate(); err != nil {
		return models.Order{}, err
	}

	order, err := ValidateOrder(ctx, s.store, req.ID, models.StatusCheckout, user.ID)
	if err != nil {
		return models.Order{}, err
	}
	if len(order.Items) == 0 {
		return models.Order{}, apperr.New(apperr.KindInvalidInput, "cannot pay for empty order with id: %s", req.ID)
	}

	// Reprice so a stale checkout snapshot cannot fix yesterday's prices.
	quote, err := ComputePrices(ctx, s.store, order.Items, order.RestaurantID, user)
	if err != nil {
		return models.Order{}, err
	}
	order.TotalPrice = quote.TotalPrice
	order.DiscountedPrice = quote.DiscountedPrice

	if err := s.stock.Reserve(ctx, order.RestaurantID, order.Items, requestID); err != nil {
		return models.Order{}, err
	}

	spent, balance, err := s.loyalty.Apply(ctx, &order, &user, req.Points, quote.LoyaltyPoints)
	if err != nil {
		return models.Order{}, err
	}

	swapped, err := s.store.CompareAndSwapStatus(ctx, order.ID, models.StatusCheckout, models.StatusPaid)
	if err != nil {
		return models.Order{}, err
	}
	if !swapped {
		// Lost the race to another payment of the same order: hand back the
		// stock and points this attempt took before rejecting it.
		if releaseErr := s.stock.Release(ctx, order.RestaurantID, order.Items, requestID); releaseErr != nil {
			s.logger.Error("stock_release_failed", "Failed to release stock after rejected payment", requestID, releaseErr,
				map[string]interface{}{"order_id": order.ID})
		}
		if refundErr := s.loyalty.Refund(ctx, &order, &user); refundErr != nil {
			s.logger.Error("points_refund_failed", "Failed to refund points after rejected payment", requestID, refundErr,
				map[string]interface{}{"order_id": order.ID})
		}
		return models.Order{}, apperr.New(apperr.KindConflict,
			"order with id %s is in incorrect state: expected %s", order.ID, models.StatusCheckout)
	}

	order.Status = models.StatusPaid
	order.PaymentMethod = req.PaymentMethod
	order.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order_paid", "Order finalized", requestID, map[string]interface{}{
		"order_id":       order.ID,
		"points_used":    spent,
		"points_balance": balance,
		"total":          order.DiscountedPrice.String(),
	})
	s.publishStatusUpdate(ctx, &order, models.StatusCheckout, user.ID, requestID)
	return order, nil
}

// Cancel cancels a checkout or paid order owned by the user. Cancelling a
// paid order releases its reserved stock and reverses its point movement.
func (s *Service) Cancel(ctx context.Context, req *models.CancelOrderRequest, user models.User, requestID string) (models.Order, error) {
	if err := req.Validate(); err != nil {
		return models.Order{}, err
	}

	order, err := ValidateOrder(ctx, s.store, req.ID, "", user.ID)
	if err != nil {
		return models.Order{}, err
	}
	if _, ok := models.CancellableStatuses[order.Status]; !ok {
		return models.Order{}, apperr.New(apperr.KindConflict,
			"order with id %s cannot be cancelled from state: %s", order.ID, order.Status)
	}

	previous := order.Status
	swapped, err := s.store.CompareAndSwapStatus(ctx, order.ID, previous, models.StatusCancelled)
	if err != nil {
		return models.Order{}, err
	}
	if !swapped {
		return models.Order{}, apperr.New(apperr.KindConflict,
			"order with id %s is in incorrect state: expected %s", order.ID, previous)
	}

	if previous == models.StatusPaid {
		if err := s.stock.Release(ctx, order.RestaurantID, order.Items, requestID); err != nil {
			return models.Order{}, err
		}
		if err := s.loyalty.Refund(ctx, &order, &user); err != nil {
			return models.Order{}, err
		}
	}

	order.Status = models.StatusCancelled
	order.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order_cancelled", "Order cancelled by customer", requestID, map[string]interface{}{
		"order_id":        order.ID,
		"previous_status": string(previous),
	})
	s.publishStatusUpdate(ctx, &order, previous, user.ID, requestID)
	return order, nil
}

// Dish resolves a single catalog dish for menu browsing
func (s *Service) Dish(ctx context.Context, dishID string) (models.Dish, error) {
	return s.store.GetDish(ctx, dishID)
}

// Get returns a single order owned by the user
func (s *Service) Get(ctx context.Context, orderID string, user models.User) (models.Order, error) {
	return ValidateOrder(ctx, s.store, orderID, "", user.ID)
}

// History returns the user's orders that have left the checkout state
func (s *Service) History(ctx context.Context, user models.User) ([]models.Order, error) {
	return s.store.ListUserOrders(ctx, user.ID)
}

// HealthCheck reports whether the backing store is reachable
func (s *Service) HealthCheck(ctx context.Context) bool {
	_, err := s.store.ListUserOrders(ctx, "health-probe")
	return err == nil || apperr.KindOf(err) != apperr.KindUnavailable
}

// publishStatusUpdate emits a status event; delivery is best effort
func (s *Service) publishStatusUpdate(ctx context.Context, order *models.Order, oldStatus models.OrderStatus, changedBy, requestID string) {
	if s.publisher == nil {
		return
	}
	msg := models.NewStatusUpdateMessage(order, oldStatus, changedBy)
	if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
		s.logger.Error("status_publish_failed", "Failed to publish status update", requestID, err, map[string]interface{}{
			"order_id":   order.ID,
			"new_status": string(order.Status),
		})
	}
}
