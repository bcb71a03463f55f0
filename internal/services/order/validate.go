package order

import (
	"context"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/storage"
)

// ValidateOrder loads an order and checks its state and ownership.
//
// An empty expectedStatus skips the state check; an empty ownerID skips the
// ownership check. Ownership mismatch reports the same not-found error as a
// missing order so callers cannot probe for foreign order ids.
func ValidateOrder(ctx context.Context, orders storage.OrderStore, orderID string,
	expectedStatus models.OrderStatus, ownerID string) (models.Order, error) {

	order, err := orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	if ownerID != "" && order.UserID != ownerID {
		return models.Order{}, apperr.New(apperr.KindNotFound, "no such order with id: %s", orderID)
	}

	if expectedStatus != "" && order.Status != expectedStatus {
		return models.Order{}, apperr.New(apperr.KindConflict,
			"order with id %s is in incorrect state: %s", orderID, order.Status)
	}

	return order, nil
}
