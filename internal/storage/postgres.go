package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/database"
	"fulfillment-system/internal/models"
)

// Postgres implements Store on top of the PostgreSQL connection pool
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a PostgreSQL-backed store
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// CatalogStore

func (p *Postgres) GetDish(ctx context.Context, id string) (models.Dish, error) {
	var dish models.Dish
	err := p.db.QueryRow(ctx, database.GetDishSQL, id).Scan(
		&dish.ID, &dish.Name, &dish.Description, &dish.Ingredients, &dish.BasePrice, &dish.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Dish{}, apperr.New(apperr.KindNotFound, "no such dish with id: %s", id)
	}
	if err != nil {
		return models.Dish{}, apperr.Wrap(apperr.KindUnavailable, err, "failed to read dish %s", id)
	}
	return dish, nil
}

func (p *Postgres) GetDishesBatch(ctx context.Context, ids []string) (map[string]models.Dish, error) {
	rows, err := p.db.Query(ctx, database.GetDishesBatchSQL, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to read dishes")
	}
	defer rows.Close()

	result := make(map[string]models.Dish, len(ids))
	for rows.Next() {
		var dish models.Dish
		if err := rows.Scan(&dish.ID, &dish.Name, &dish.Description, &dish.Ingredients, &dish.BasePrice, &dish.Points); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to scan dish")
		}
		result[dish.ID] = dish
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to read dishes")
	}
	return result, nil
}

func (p *Postgres) GetRestaurant(ctx context.Context, id string) (models.Restaurant, error) {
	var restaurant models.Restaurant
	err := p.db.QueryRow(ctx, database.GetRestaurantSQL, id).Scan(
		&restaurant.ID, &restaurant.Name, &restaurant.City, &restaurant.Address, &restaurant.OpeningHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Restaurant{}, apperr.New(apperr.KindNotFound, "incorrect restaurant id: %s", id)
	}
	if err != nil {
		return models.Restaurant{}, apperr.Wrap(apperr.KindUnavailable, err, "failed to read restaurant %s", id)
	}

	restaurant.SpecialOfferIDs, err = p.queryStrings(ctx, database.GetRestaurantOfferRefsSQL, id)
	if err != nil {
		return models.Restaurant{}, err
	}
	return restaurant, nil
}

func (p *Postgres) GetRestaurantDishLinks(ctx context.Context, restaurantID string, dishIDs []string) ([]string, error) {
	return p.queryStrings(ctx, database.GetRestaurantDishLinksSQL, restaurantID, dishIDs)
}

func (p *Postgres) GetOffersBatch(ctx context.Context, ids []string) ([]models.SpecialOffer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := p.db.Query(ctx, database.GetOffersBatchSQL, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to read special offers")
	}
	defer rows.Close()

	var offers []models.SpecialOffer
	for rows.Next() {
		var offer models.SpecialOffer
		if err := rows.Scan(&offer.ID, &offer.DishID, &offer.Name, &offer.SpecialPrice); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to scan special offer")
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to read special offers")
	}
	return offers, nil
}

// OrderStore

func (p *Postgres) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	err := p.db.QueryRow(ctx, database.GetOrderSQL, id).Scan(
		&order.ID, &order.UserID, &order.RestaurantID,
		&order.TotalPrice, &order.DiscountedPrice, &order.Status,
		&order.PointsUsed, &order.PointsEarned, &order.PaymentMethod,
		&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, apperr.New(apperr.KindNotFound, "no such order with id: %s", id)
	}
	if err != nil {
		return models.Order{}, apperr.Wrap(apperr.KindUnavailable, err, "failed to read order %s", id)
	}

	order.Items, err = p.readOrderItems(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (p *Postgres) InsertOrder(ctx context.Context, order models.Order) (string, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	err := p.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, database.InsertOrderSQL,
			order.ID, order.UserID, order.RestaurantID,
			order.TotalPrice, order.DiscountedPrice, order.Status,
			order.PointsUsed, order.PointsEarned, order.PaymentMethod,
			order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return insertOrderItems(ctx, tx, order.ID, order.Items)
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, err, "failed to persist order")
	}
	return order.ID, nil
}

func (p *Postgres) UpdateOrder(ctx context.Context, order models.Order) error {
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, database.UpdateOrderSQL,
			order.ID, order.TotalPrice, order.DiscountedPrice, order.Status,
			order.PointsUsed, order.PointsEarned, order.PaymentMethod, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.KindNotFound, "no such order with id: %s", order.ID)
		}

		if _, err := tx.Exec(ctx, database.DeleteOrderItemsSQL, order.ID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		return insertOrderItems(ctx, tx, order.ID, order.Items)
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}
		return apperr.Wrap(apperr.KindUnavailable, err, "failed to persist order %s", order.ID)
	}
	return nil
}

func (p *Postgres) CompareAndSwapStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	tag, err := p.db.Pool.Exec(ctx, database.CompareAndSwapOrderStatusSQL, id, from, to)
	if err != nil {
		return false, apperr.Wrap(apperr.KindUnavailable, err, "failed to transition order %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return p.listOrders(ctx, database.ListUserOrdersSQL, userID)
}

func (p *Postgres) ListRestaurantOrders(ctx context.Context, restaurantID string, status models.OrderStatus) ([]models.Order, error) {
	return p.listOrders(ctx, database.ListRestaurantOrdersSQL, restaurantID, status)
}

// StockStore

type pgStockTx struct {
	tx pgx.Tx
}

func (p *Postgres) WithStockTx(ctx context.Context, fn func(tx StockTx) error) error {
	return p.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgStockTx{tx: tx})
	})
}

func (t *pgStockTx) StockCounts(ctx context.Context, restaurantID string, dishIDs []string) (map[string]int, error) {
	rows, err := t.tx.Query(ctx, database.SelectStockForUpdateSQL, restaurantID, dishIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to lock stock rows")
	}
	defer rows.Close()

	counts := make(map[string]int, len(dishIDs))
	for rows.Next() {
		var dishID string
		var count int
		if err := rows.Scan(&dishID, &count); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to scan stock row")
		}
		counts[dishID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to read stock rows")
	}
	return counts, nil
}

func (t *pgStockTx) SetStockCounts(ctx context.Context, restaurantID string, counts map[string]int) error {
	for dishID, count := range counts {
		if _, err := t.tx.Exec(ctx, database.UpdateStockCountSQL, restaurantID, dishID, count); err != nil {
			return apperr.Wrap(apperr.KindUnavailable, err, "failed to write stock for dish %s", dishID)
		}
	}
	return nil
}

// UserStore

func (p *Postgres) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := p.db.QueryRow(ctx, database.GetUserSQL, id).Scan(
		&user.ID, &user.Email, &user.Role, &user.RestaurantID, &user.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, apperr.New(apperr.KindNotFound, "no such user with id: %s", id)
	}
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.KindUnavailable, err, "failed to read user %s", id)
	}

	user.SpecialOfferIDs, err = p.queryStrings(ctx, database.GetUserOfferRefsSQL, id)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (p *Postgres) SetUserPoints(ctx context.Context, id string, points int) error {
	tag, err := p.db.Pool.Exec(ctx, database.SetUserPointsSQL, id, points)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "failed to write points for user %s", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "no such user with id: %s", id)
	}
	return nil
}

// helpers

// withTx runs fn in a transaction, rolling back on error
func (p *Postgres) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (txErr error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOrderItems(ctx context.Context, tx pgx.Tx, orderID string, items map[string]int) error {
	for dishID, quantity := range items {
		if _, err := tx.Exec(ctx, database.InsertOrderItemSQL, orderID, dishID, quantity); err != nil {
			return fmt.Errorf("insert order item %s: %w", dishID, err)
		}
	}
	return nil
}

func (p *Postgres) readOrderItems(ctx context.Context, orderID string) (map[string]int, error) {
	rows, err := p.db.Query(ctx, database.GetOrderItemsSQL, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to read order items")
	}
	defer rows.Close()

	items := make(map[string]int)
	for rows.Next() {
		var dishID string
		var quantity int
		if err := rows.Scan(&dishID, &quantity); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to scan order item")
		}
		items[dishID] = quantity
	}
	return items, rows.Err()
}

func (p *Postgres) listOrders(ctx context.Context, sql string, args ...interface{}) ([]models.Order, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to list orders")
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.RestaurantID,
			&order.TotalPrice, &order.DiscountedPrice, &order.Status,
			&order.PointsUsed, &order.PointsEarned, &order.PaymentMethod,
			&order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to scan order")
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "failed to list orders")
	}

	for i := range orders {
		orders[i].Items, err = p.readOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (p *Postgres) queryStrings(ctx context.Context, sql string, args ...interface{}) ([]string, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "query failed")
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan failed")
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "query failed")
	}
	return values, nil
}
