package database

// Catalog queries
const (
	GetDishSQL = `
		SELECT id, name, description, ingredients, base_price, points
		FROM dishes WHERE id = $1`

	GetDishesBatchSQL = `
		SELECT id, name, description, ingredients, base_price, points
		FROM dishes WHERE id = ANY($1)`

	GetRestaurantSQL = `
		SELECT id, name, city, address, opening_hours
		FROM restaurants WHERE id = $1`

	GetRestaurantOfferRefsSQL = `
		SELECT offer_id FROM restaurant_special_offers WHERE restaurant_id = $1`

	GetUserOfferRefsSQL = `
		SELECT offer_id FROM user_special_offers WHERE user_id = $1`

	GetRestaurantDishLinksSQL = `
		SELECT dish_id FROM restaurant_dishes
		WHERE restaurant_id = $1 AND dish_id = ANY($2)`

	GetOffersBatchSQL = `
		SELECT id, dish_id, name, special_price
		FROM special_offers WHERE id = ANY($1)`
)

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (id, user_id, restaurant_id, total_price, total_price_including_special_offers,
			status, points_used, points_earned, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, dish_id, quantity)
		VALUES ($1, $2, $3)`

	DeleteOrderItemsSQL = `
		DELETE FROM order_items WHERE order_id = $1`

	UpdateOrderSQL = `
		UPDATE orders SET total_price = $2, total_price_including_special_offers = $3,
			status = $4, points_used = $5, points_earned = $6, payment_method = $7, updated_at = $8
		WHERE id = $1`

	CompareAndSwapOrderStatusSQL = `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	GetOrderSQL = `
		SELECT id, user_id, restaurant_id, total_price, total_price_including_special_offers,
			status, points_used, points_earned, COALESCE(payment_method, ''), created_at, updated_at
		FROM orders WHERE id = $1`

	GetOrderItemsSQL = `
		SELECT dish_id, quantity FROM order_items WHERE order_id = $1`

	ListUserOrdersSQL = `
		SELECT id, user_id, restaurant_id, total_price, total_price_including_special_offers,
			status, points_used, points_earned, COALESCE(payment_method, ''), created_at, updated_at
		FROM orders WHERE user_id = $1 AND status <> 'checkout'
		ORDER BY created_at DESC`

	ListRestaurantOrdersSQL = `
		SELECT id, user_id, restaurant_id, total_price, total_price_including_special_offers,
			status, points_used, points_earned, COALESCE(payment_method, ''), created_at, updated_at
		FROM orders WHERE restaurant_id = $1 AND status = $2
		ORDER BY created_at ASC`
)

// Stock queries
const (
	SelectStockForUpdateSQL = `
		SELECT dish_id, stock_count FROM restaurant_dishes
		WHERE restaurant_id = $1 AND dish_id = ANY($2)
		FOR UPDATE`

	UpdateStockCountSQL = `
		UPDATE restaurant_dishes SET stock_count = $3
		WHERE restaurant_id = $1 AND dish_id = $2`
)

// User queries
const (
	GetUserSQL = `
		SELECT id, email, role, COALESCE(restaurant_id, ''), points
		FROM users WHERE id = $1`

	SetUserPointsSQL = `
		UPDATE users SET points = $2 WHERE id = $1`
)
