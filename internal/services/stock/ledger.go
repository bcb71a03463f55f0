// Package stock implements the stock ledger: atomic, all-or-nothing
// reservation of per-restaurant dish inventory at payment time.
package stock

import (
	"context"

	"github.com/samber/lo"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/logger"
	"fulfillment-system/internal/storage"
)

// Ledger mutates restaurant-dish stock counts. It is the only mutator of
// stock on the ordering path.
type Ledger struct {
	store  storage.StockStore
	logger *logger.Logger
}

// NewLedger creates a stock ledger over the given store
func NewLedger(store storage.StockStore, log *logger.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: log,
	}
}

// Reserve decrements stock for every item of the order, or none at all.
// The read-check-write sequence runs inside a single stock transaction, so
// two concurrent reservations of the same dish cannot both observe
// sufficient stock. Must be called at most once per order; the caller guards
// this with the checkout-to-paid status swap.
func (l *Ledger) Reserve(ctx context.Context, restaurantID string, items map[string]int, requestID string) error {
	return l.store.WithStockTx(ctx, func(tx storage.StockTx) error {
		counts, err := tx.StockCounts(ctx, restaurantID, lo.Keys(items))
		if err != nil {
			return err
		}

		updated := make(map[string]int, len(items))
		for dishID, quantity := range items {
			current, ok := counts[dishID]
			newCount := current - quantity
			if !ok || newCount < 0 {
				l.logger.Debug("stock_reservation_rejected", "Ordered quantity exceeds current stock", requestID,
					map[string]interface{}{
						"restaurant_id": restaurantID,
						"dish_id":       dishID,
						"requested":     quantity,
						"in_stock":      current,
					})
				return apperr.New(apperr.KindConflict,
					"ordered quantity for dish %s exceeds current restaurant stock", dishID)
			}
			updated[dishID] = newCount
		}

		return tx.SetStockCounts(ctx, restaurantID, updated)
	})
}

// Release returns previously reserved stock, used when a paid order is
// cancelled before completion
func (l *Ledger) Release(ctx context.Context, restaurantID string, items map[string]int, requestID string) error {
	return l.store.WithStockTx(ctx, func(tx storage.StockTx) error {
		counts, err := tx.StockCounts(ctx, restaurantID, lo.Keys(items))
		if err != nil {
			return err
		}

		updated := make(map[string]int, len(items))
		for dishID, quantity := range items {
			// Rows removed from the menu since payment keep their reservation.
			if current, ok := counts[dishID]; ok {
				updated[dishID] = current + quantity
			}
		}

		l.logger.Debug("stock_released", "Returned reserved stock to restaurant", requestID,
			map[string]interface{}{
				"restaurant_id": restaurantID,
				"dishes":        len(updated),
			})
		return tx.SetStockCounts(ctx, restaurantID, updated)
	})
}
