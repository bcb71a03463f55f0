package models

import "github.com/shopspring/decimal"

// Dish is a menu entry with its current base price and the loyalty points
// a customer earns per ordered unit
type Dish struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Ingredients string          `json:"ingredients,omitempty"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Points      int             `json:"points"`
}

// Restaurant is a venue selling dishes through restaurant-dish join records
type Restaurant struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	City            string   `json:"city,omitempty"`
	Address         string   `json:"address,omitempty"`
	OpeningHours    string   `json:"opening_hours,omitempty"`
	SpecialOfferIDs []string `json:"special_offers,omitempty"`
}

// RestaurantDish asserts a dish is sellable at a restaurant and tracks its stock
type RestaurantDish struct {
	RestaurantID string `json:"restaurant_id"`
	DishID       string `json:"dish_id"`
	IsAvailable  bool   `json:"is_available"`
	StockCount   int    `json:"stock_count"`
}

// SpecialOffer is a per-dish discounted price, attached either to a user
// (personal) or to a restaurant (general)
type SpecialOffer struct {
	ID           string          `json:"id"`
	DishID       string          `json:"dish_id"`
	Name         string          `json:"name,omitempty"`
	SpecialPrice decimal.Decimal `json:"special_price"`
}

// UserRole distinguishes customers from restaurant workers
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleWorker   UserRole = "worker"
	RoleCustomer UserRole = "customer"
)

// User is the platform account acting on an order. Workers carry the
// restaurant they are assigned to; customers carry a loyalty point balance
// and personal special offers.
type User struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Role            UserRole `json:"role"`
	RestaurantID    string   `json:"restaurant_id,omitempty"`
	Points          int      `json:"points"`
	SpecialOfferIDs []string `json:"special_offers,omitempty"`
}
