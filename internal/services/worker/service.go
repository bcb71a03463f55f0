// Package worker implements the worker-panel side of the order pipeline:
// listing a restaurant's active orders and advancing them through
// paid -> in_progress -> ready -> completed.
package worker

import (
	"context"
	"time"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/logger"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/services/order"
	"fulfillment-system/internal/storage"
)

// listableStatuses are the pipeline states the worker panel shows
var listableStatuses = map[models.OrderStatus]struct{}{
	models.StatusPaid:       {},
	models.StatusInProgress: {},
	models.StatusReady:      {},
}

// Service provides worker-panel order operations
type Service struct {
	orders    storage.OrderStore
	publisher order.StatusPublisher
	logger    *logger.Logger
}

// NewService creates a worker-panel service. publisher may be nil.
func NewService(orders storage.OrderStore, publisher order.StatusPublisher, log *logger.Logger) *Service {
	return &Service{
		orders:    orders,
		publisher: publisher,
		logger:    log,
	}
}

// TransitionStatus advances an order to target on behalf of a worker.
//
// The target must be reachable through the transition table and the order
// must belong to the worker's restaurant; a foreign order reports not-found
// rather than forbidden so order existence is not leaked across restaurants.
func (s *Service) TransitionStatus(ctx context.Context, orderID, workerRestaurantID string,
	target models.OrderStatus, changedBy, requestID string) (models.Order, error) {

	required, err := models.RequiredCurrentStatus(target)
	if err != nil {
		return models.Order{}, err
	}

	o, err := order.ValidateOrder(ctx, s.orders, orderID, required, "")
	if err != nil {
		return models.Order{}, err
	}

	if o.RestaurantID != workerRestaurantID {
		return models.Order{}, apperr.New(apperr.KindNotFound, "no such order with id: %s", orderID)
	}

	swapped, err := s.orders.CompareAndSwapStatus(ctx, orderID, required, target)
	if err != nil {
		return models.Order{}, err
	}
	if !swapped {
		return models.Order{}, apperr.New(apperr.KindConflict,
			"order with id %s is in incorrect state: expected %s", orderID, required)
	}

	o.Status = target
	o.UpdatedAt = time.Now().UTC()

	s.logger.Info("order_status_changed", "Order advanced through preparation pipeline", requestID,
		map[string]interface{}{
			"order_id":   orderID,
			"old_status": string(required),
			"new_status": string(target),
			"changed_by": changedBy,
		})

	if s.publisher != nil {
		msg := models.NewStatusUpdateMessage(&o, required, changedBy)
		if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
			s.logger.Error("status_publish_failed", "Failed to publish status update", requestID, err,
				map[string]interface{}{"order_id": orderID})
		}
	}
	return o, nil
}

// OrdersByStatus lists the worker restaurant's orders in one pipeline state
func (s *Service) OrdersByStatus(ctx context.Context, workerRestaurantID string, status models.OrderStatus) ([]models.Order, error) {
	if _, ok := listableStatuses[status]; !ok {
		return nil, apperr.New(apperr.KindInvalidInput,
			"%s is not an acceptable order status for the worker panel", status)
	}
	return s.orders.ListRestaurantOrders(ctx, workerRestaurantID, status)
}
