package order

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/logger"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/services/loyalty"
	"fulfillment-system/internal/services/stock"
	"fulfillment-system/internal/storage"
)

// capturingPublisher records published status events in memory
type capturingPublisher struct {
	mu       sync.Mutex
	messages []*models.StatusUpdateMessage
}

func (p *capturingPublisher) PublishStatusUpdate(_ context.Context, msg *models.StatusUpdateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) lastMessage() *models.StatusUpdateMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return nil
	}
	return p.messages[len(p.messages)-1]
}

type fixture struct {
	store     *storage.Memory
	service   *Service
	publisher *capturingPublisher
	customer  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := seedCatalog(t)
	customer := models.User{ID: "cust-1", Email: "cust@example.com", Role: models.RoleCustomer, Points: 100}
	store.PutUser(customer)

	log := logger.New("order-service-test")
	publisher := &capturingPublisher{}
	service := NewService(store, stock.NewLedger(store, log), loyalty.NewLedger(store), publisher, log)

	return &fixture{store: store, service: service, publisher: publisher, customer: customer}
}

func (f *fixture) createOrder(t *testing.T, items map[string]int) models.Order {
	t.Helper()

	order, err := f.service.Create(context.Background(), &models.CreateOrderRequest{
		RestaurantID: "rest-1",
		Items:        items,
	}, f.customer, "req-test")
	require.NoError(t, err)
	return order
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t, map[string]int{"margherita": 2, "pepperoni": 1})

	require.NotEmpty(t, order.ID)
	require.Equal(t, models.StatusCheckout, order.Status)
	require.Equal(t, "cust-1", order.UserID)
	require.True(t, order.TotalPrice.Equal(decimal.NewFromInt(40)))
	require.True(t, order.DiscountedPrice.Equal(decimal.NewFromInt(40)))
	require.Zero(t, order.PointsUsed)

	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Items, stored.Items)
}

func TestCreate_UnknownRestaurant(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), &models.CreateOrderRequest{
		RestaurantID: "rest-999",
		Items:        map[string]int{"margherita": 1},
	}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreate_DishNotOnRestaurantMenu(t *testing.T) {
	f := newFixture(t)
	f.store.PutDish(models.Dish{ID: "sushi", BasePrice: decimal.NewFromInt(30)})

	_, err := f.service.Create(context.Background(), &models.CreateOrderRequest{
		RestaurantID: "rest-1",
		Items:        map[string]int{"sushi": 1},
	}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	require.Contains(t, err.Error(), "sushi")
}

func TestUpdateItems(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	updated, err := f.service.UpdateItems(context.Background(), &models.UpdateOrderRequest{
		ID:    order.ID,
		Items: map[string]int{"pepperoni": 2},
	}, f.customer, "req-test")
	require.NoError(t, err)

	require.Equal(t, map[string]int{"pepperoni": 2}, updated.Items)
	require.True(t, updated.TotalPrice.Equal(decimal.NewFromInt(40)))
}

func TestUpdateItems_RejectedAfterPayment(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	_, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.NoError(t, err)

	_, err = f.service.UpdateItems(context.Background(), &models.UpdateOrderRequest{
		ID:    order.ID,
		Items: map[string]int{"pepperoni": 1},
	}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUpdateItems_ForeignOrderLooksMissing(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	other := models.User{ID: "cust-2", Role: models.RoleCustomer}
	f.store.PutUser(other)

	_, err := f.service.UpdateItems(context.Background(), &models.UpdateOrderRequest{
		ID:    order.ID,
		Items: map[string]int{"pepperoni": 1},
	}, other, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 2, "pepperoni": 1})

	paid, err := f.service.Pay(context.Background(), &models.PayOrderRequest{
		ID:            order.ID,
		PaymentMethod: "card",
	}, f.customer, "req-test")
	require.NoError(t, err)

	require.Equal(t, models.StatusPaid, paid.Status)
	require.Equal(t, "card", paid.PaymentMethod)
	require.Zero(t, paid.PointsUsed)
	require.Equal(t, 7, paid.PointsEarned)

	require.Equal(t, 8, f.store.StockCount("rest-1", "margherita"))
	require.Equal(t, 9, f.store.StockCount("rest-1", "pepperoni"))

	user, err := f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, 107, user.Points)

	msg := f.publisher.lastMessage()
	require.NotNil(t, msg)
	require.Equal(t, string(models.StatusCheckout), msg.OldStatus)
	require.Equal(t, string(models.StatusPaid), msg.NewStatus)
}

func TestPay_SpendsCappedPoints(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"pepperoni": 1}) // total 20

	paid, err := f.service.Pay(context.Background(), &models.PayOrderRequest{
		ID:     order.ID,
		Points: 500,
	}, f.customer, "req-test")
	require.NoError(t, err)

	// Spend is capped by the discounted total, not the requested amount.
	require.Equal(t, 20, paid.PointsUsed)

	user, err := f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, 100-20+3, user.Points)
}

func TestPay_SpendsCappedByBalance(t *testing.T) {
	f := newFixture(t)
	f.customer.Points = 5
	f.store.PutUser(f.customer)
	order := f.createOrder(t, map[string]int{"pepperoni": 1})

	paid, err := f.service.Pay(context.Background(), &models.PayOrderRequest{
		ID:     order.ID,
		Points: 15,
	}, f.customer, "req-test")
	require.NoError(t, err)

	require.Equal(t, 5, paid.PointsUsed)

	user, err := f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, 3, user.Points)
}

func TestPay_EmptyOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, nil)

	_, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestPay_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	f.store.PutRestaurantDish(models.RestaurantDish{RestaurantID: "rest-1", DishID: "pepperoni", IsAvailable: true, StockCount: 2})
	order := f.createOrder(t, map[string]int{"margherita": 1, "pepperoni": 3})

	_, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// All-or-nothing: the sufficiently stocked dish is not decremented either.
	require.Equal(t, 10, f.store.StockCount("rest-1", "margherita"))
	require.Equal(t, 2, f.store.StockCount("rest-1", "pepperoni"))

	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckout, stored.Status)

	user, err := f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, 100, user.Points)
}

func TestPay_SecondAttemptRejected(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	_, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.NoError(t, err)

	_, err = f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Stock was reserved exactly once.
	require.Equal(t, 9, f.store.StockCount("rest-1", "margherita"))
}

func TestCancel_CheckoutOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	cancelled, err := f.service.Cancel(context.Background(), &models.CancelOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)

	// Checkout orders never reserved stock, so counts are untouched.
	require.Equal(t, 10, f.store.StockCount("rest-1", "margherita"))
}

func TestCancel_PaidOrderReleasesStockAndRefundsPoints(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"pepperoni": 1})

	paid, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID, Points: 10}, f.customer, "req-test")
	require.NoError(t, err)
	require.Equal(t, 10, paid.PointsUsed)
	require.Equal(t, 9, f.store.StockCount("rest-1", "pepperoni"))

	user, err := f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	f.customer = user

	cancelled, err := f.service.Cancel(context.Background(), &models.CancelOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)

	require.Equal(t, 10, f.store.StockCount("rest-1", "pepperoni"))

	user, err = f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, 100, user.Points)
}

func TestCancel_InProgressOrderRejected(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	_, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.NoError(t, err)

	swapped, err := f.store.CompareAndSwapStatus(context.Background(), order.ID, models.StatusPaid, models.StatusInProgress)
	require.NoError(t, err)
	require.True(t, swapped)

	_, err = f.service.Cancel(context.Background(), &models.CancelOrderRequest{ID: order.ID}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestHistory_ExcludesCheckoutOrders(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, map[string]int{"margherita": 1})
	paidOrder := f.createOrder(t, map[string]int{"pepperoni": 1})

	_, err := f.service.Pay(context.Background(), &models.PayOrderRequest{ID: paidOrder.ID}, f.customer, "req-test")
	require.NoError(t, err)

	history, err := f.service.History(context.Background(), f.customer)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, paidOrder.ID, history[0].ID)
}

func TestGet_ForeignOrderLooksMissing(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 1})

	_, err := f.service.Get(context.Background(), order.ID, models.User{ID: "cust-2"})
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := f.service.Get(context.Background(), order.ID, f.customer)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

// lostRaceStore reports every status swap as already taken by another writer
type lostRaceStore struct {
	*storage.Memory
}

func (s *lostRaceStore) CompareAndSwapStatus(context.Context, string, models.OrderStatus, models.OrderStatus) (bool, error) {
	return false, nil
}

func TestPay_LostStatusRaceRestoresStockAndPoints(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, map[string]int{"margherita": 2})

	log := logger.New("order-service-test")
	racing := NewService(&lostRaceStore{Memory: f.store}, stock.NewLedger(f.store, log), loyalty.NewLedger(f.store), nil, log)

	_, err := racing.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID, Points: 10}, f.customer, "req-test")
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The rejected attempt must hand back everything it took.
	require.Equal(t, 10, f.store.StockCount("rest-1", "margherita"))

	user, err := f.store.GetUser(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Equal(t, 100, user.Points)

	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCheckout, stored.Status)
	require.Zero(t, stored.PointsUsed)
}

func TestPay_ConcurrentDuplicateDecrementsStockOnce(t *testing.T) {
	f := newFixture(t)
	f.store.PutDish(models.Dish{ID: "water", BasePrice: decimal.NewFromInt(2)})
	f.store.PutRestaurantDish(models.RestaurantDish{RestaurantID: "rest-1", DishID: "water", IsAvailable: true, StockCount: 10})
	order := f.createOrder(t, map[string]int{"water": 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for i := range errs {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Pay(context.Background(), &models.PayOrderRequest{ID: order.ID}, f.customer, "req-dup")
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one duplicate payment must lose the status race")
	require.Equal(t, 9, f.store.StockCount("rest-1", "water"))

	stored, err := f.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, stored.Status)
}

func TestPay_ConcurrentOversell(t *testing.T) {
	f := newFixture(t)
	f.store.PutRestaurantDish(models.RestaurantDish{RestaurantID: "rest-1", DishID: "margherita", IsAvailable: true, StockCount: 1})

	other := models.User{ID: "cust-2", Role: models.RoleCustomer}
	f.store.PutUser(other)

	first := f.createOrder(t, map[string]int{"margherita": 1})
	second, err := f.service.Create(context.Background(), &models.CreateOrderRequest{
		RestaurantID: "rest-1",
		Items:        map[string]int{"margherita": 1},
	}, other, "req-test")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.service.Pay(context.Background(), &models.PayOrderRequest{ID: first.ID}, f.customer, "req-a")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.service.Pay(context.Background(), &models.PayOrderRequest{ID: second.ID}, other, "req-b")
	}()
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one of the two payments must lose the stock race")
	require.Equal(t, 0, f.store.StockCount("rest-1", "margherita"))
}
