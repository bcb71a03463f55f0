package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/models"
)

// Memory is an in-process Store used by tests and local development.
// A single mutex serializes stock transactions, which gives the same
// all-or-nothing guarantee as the row locks of the PostgreSQL store.
type Memory struct {
	mu          sync.RWMutex
	dishes      map[string]models.Dish
	restaurants map[string]models.Restaurant
	links       map[string]map[string]models.RestaurantDish
	offers      map[string]models.SpecialOffer
	users       map[string]models.User
	orders      map[string]models.Order
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		dishes:      make(map[string]models.Dish),
		restaurants: make(map[string]models.Restaurant),
		links:       make(map[string]map[string]models.RestaurantDish),
		offers:      make(map[string]models.SpecialOffer),
		users:       make(map[string]models.User),
		orders:      make(map[string]models.Order),
	}
}

// Seeding helpers

func (m *Memory) PutDish(dish models.Dish) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dishes[dish.ID] = dish
}

func (m *Memory) PutRestaurant(restaurant models.Restaurant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restaurants[restaurant.ID] = restaurant
}

func (m *Memory) PutRestaurantDish(link models.RestaurantDish) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[link.RestaurantID] == nil {
		m.links[link.RestaurantID] = make(map[string]models.RestaurantDish)
	}
	m.links[link.RestaurantID][link.DishID] = link
}

func (m *Memory) PutOffer(offer models.SpecialOffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offer.ID] = offer
}

func (m *Memory) PutUser(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// StockCount reports current stock for one restaurant dish; used by tests
func (m *Memory) StockCount(restaurantID, dishID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.links[restaurantID][dishID].StockCount
}

// CatalogStore

func (m *Memory) GetDish(_ context.Context, id string) (models.Dish, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dish, ok := m.dishes[id]
	if !ok {
		return models.Dish{}, apperr.New(apperr.KindNotFound, "no such dish with id: %s", id)
	}
	return dish, nil
}

func (m *Memory) GetDishesBatch(_ context.Context, ids []string) (map[string]models.Dish, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]models.Dish, len(ids))
	for _, id := range ids {
		if dish, ok := m.dishes[id]; ok {
			result[id] = dish
		}
	}
	return result, nil
}

func (m *Memory) GetRestaurant(_ context.Context, id string) (models.Restaurant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	restaurant, ok := m.restaurants[id]
	if !ok {
		return models.Restaurant{}, apperr.New(apperr.KindNotFound, "incorrect restaurant id: %s", id)
	}
	return restaurant, nil
}

func (m *Memory) GetRestaurantDishLinks(_ context.Context, restaurantID string, dishIDs []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var members []string
	for _, dishID := range dishIDs {
		if _, ok := m.links[restaurantID][dishID]; ok {
			members = append(members, dishID)
		}
	}
	return members, nil
}

func (m *Memory) GetOffersBatch(_ context.Context, ids []string) ([]models.SpecialOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var offers []models.SpecialOffer
	for _, id := range ids {
		if offer, ok := m.offers[id]; ok {
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

// OrderStore

func (m *Memory) GetOrder(_ context.Context, id string) (models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, apperr.New(apperr.KindNotFound, "no such order with id: %s", id)
	}
	order.Items = copyItems(order.Items)
	return order, nil
}

func (m *Memory) InsertOrder(_ context.Context, order models.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Items = copyItems(order.Items)
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *Memory) UpdateOrder(_ context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "no such order with id: %s", order.ID)
	}
	order.Items = copyItems(order.Items)
	m.orders[order.ID] = order
	return nil
}

func (m *Memory) CompareAndSwapStatus(_ context.Context, id string, from, to models.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	m.orders[id] = order
	return true, nil
}

func (m *Memory) ListUserOrders(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Order
	for _, order := range m.orders {
		if order.UserID == userID && order.Status != models.StatusCheckout {
			order.Items = copyItems(order.Items)
			result = append(result, order)
		}
	}
	return result, nil
}

func (m *Memory) ListRestaurantOrders(_ context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Order
	for _, order := range m.orders {
		if order.RestaurantID == restaurantID && order.Status == status {
			order.Items = copyItems(order.Items)
			result = append(result, order)
		}
	}
	return result, nil
}

// StockStore

type memoryStockTx struct {
	store *Memory
}

func (m *Memory) WithStockTx(_ context.Context, fn func(tx StockTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryStockTx{store: m})
}

func (tx *memoryStockTx) StockCounts(_ context.Context, restaurantID string, dishIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(dishIDs))
	for _, dishID := range dishIDs {
		if link, ok := tx.store.links[restaurantID][dishID]; ok {
			counts[dishID] = link.StockCount
		}
	}
	return counts, nil
}

func (tx *memoryStockTx) SetStockCounts(_ context.Context, restaurantID string, counts map[string]int) error {
	for dishID, count := range counts {
		link, ok := tx.store.links[restaurantID][dishID]
		if !ok {
			return apperr.New(apperr.KindNotFound, "no restaurant dish %s/%s", restaurantID, dishID)
		}
		link.StockCount = count
		tx.store.links[restaurantID][dishID] = link
	}
	return nil
}

// UserStore

func (m *Memory) GetUser(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, apperr.New(apperr.KindNotFound, "no such user with id: %s", id)
	}
	return user, nil
}

func (m *Memory) SetUserPoints(_ context.Context, id string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "no such user with id: %s", id)
	}
	user.Points = points
	m.users[id] = user
	return nil
}

func copyItems(items map[string]int) map[string]int {
	if items == nil {
		return nil
	}
	copied := make(map[string]int, len(items))
	for dishID, quantity := range items {
		copied[dishID] = quantity
	}
	return copied
}
