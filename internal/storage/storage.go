// Package storage defines the narrow store interfaces the engine operates
// through, plus their PostgreSQL and in-memory implementations. No operation
// touches the backing store except through these interfaces.
package storage

import (
	"context"

	"fulfillment-system/internal/models"
)

// CatalogStore resolves dish, restaurant, menu-membership and special-offer
// documents. Read-only from the engine's point of view.
type CatalogStore interface {
	GetDish(ctx context.Context, id string) (models.Dish, error)
	// GetDishesBatch resolves many dishes at once; ids missing from the
	// catalog are absent from the result rather than an error.
	GetDishesBatch(ctx context.Context, ids []string) (map[string]models.Dish, error)
	GetRestaurant(ctx context.Context, id string) (models.Restaurant, error)
	// GetRestaurantDishLinks returns the subset of dishIDs that are members
	// of the restaurant's menu.
	GetRestaurantDishLinks(ctx context.Context, restaurantID string, dishIDs []string) ([]string, error)
	// GetOffersBatch resolves special offers; unresolvable refs are skipped.
	GetOffersBatch(ctx context.Context, ids []string) ([]models.SpecialOffer, error)
}

// OrderStore persists order documents
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (models.Order, error)
	InsertOrder(ctx context.Context, order models.Order) (string, error)
	UpdateOrder(ctx context.Context, order models.Order) error
	// CompareAndSwapStatus transitions the order status only if it currently
	// equals from; it reports whether the swap happened.
	CompareAndSwapStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)
	// ListUserOrders returns a user's orders that have left the checkout state.
	ListUserOrders(ctx context.Context, userID string) ([]models.Order, error)
	ListRestaurantOrders(ctx context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error)
}

// StockTx is the read-check-write scope of one stock reservation. Reads and
// writes within it are isolated from concurrent reservations of the same rows.
type StockTx interface {
	// StockCounts reads current stock for the given dishes; dishes without a
	// restaurant-dish row are absent from the result.
	StockCounts(ctx context.Context, restaurantID string, dishIDs []string) (map[string]int, error)
	// SetStockCounts writes new stock counts for the given dishes.
	SetStockCounts(ctx context.Context, restaurantID string, counts map[string]int) error
}

// StockStore provides the transactional primitive the stock ledger relies on:
// fn runs atomically, and any error discards all of its writes
type StockStore interface {
	WithStockTx(ctx context.Context, fn func(tx StockTx) error) error
}

// UserStore reads user accounts and persists loyalty point balances
type UserStore interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	SetUserPoints(ctx context.Context, id string, points int) error
}

// Store aggregates every interface the engine consumes
type Store interface {
	CatalogStore
	OrderStore
	StockStore
	UserStore
}
