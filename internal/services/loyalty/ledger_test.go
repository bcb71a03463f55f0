package loyalty

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fulfillment-system/internal/models"
	"fulfillment-system/internal/storage"
)

func newLedger(t *testing.T, balance int) (*Ledger, *storage.Memory, models.User) {
	t.Helper()

	store := storage.NewMemory()
	user := models.User{ID: "u1", Role: models.RoleCustomer, Points: balance}
	store.PutUser(user)
	return NewLedger(store), store, user
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		balance     int
		total       int64
		spend       int
		earn        int
		wantSpent   int
		wantBalance int
	}{
		{name: "full spend", balance: 100, total: 50, spend: 30, earn: 0, wantSpent: 30, wantBalance: 70},
		{name: "capped by balance", balance: 5, total: 50, spend: 15, earn: 2, wantSpent: 5, wantBalance: 2},
		{name: "capped by order total", balance: 100, total: 20, spend: 80, earn: 0, wantSpent: 20, wantBalance: 80},
		{name: "earn only", balance: 10, total: 50, spend: 0, earn: 7, wantSpent: 0, wantBalance: 17},
		{name: "spend and earn", balance: 40, total: 50, spend: 10, earn: 3, wantSpent: 10, wantBalance: 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, store, user := newLedger(t, tt.balance)
			order := models.Order{ID: "o1", DiscountedPrice: decimal.NewFromInt(tt.total)}

			spent, balance, err := ledger.Apply(context.Background(), &order, &user, tt.spend, tt.earn)
			require.NoError(t, err)

			require.Equal(t, tt.wantSpent, spent)
			require.Equal(t, tt.wantBalance, balance)
			require.Equal(t, tt.wantSpent, order.PointsUsed)
			require.Equal(t, tt.earn, order.PointsEarned)

			persisted, err := store.GetUser(context.Background(), "u1")
			require.NoError(t, err)
			require.Equal(t, tt.wantBalance, persisted.Points)
		})
	}
}

func TestApply_NothingToDo(t *testing.T) {
	ledger, _, user := newLedger(t, 42)
	order := models.Order{ID: "o1", DiscountedPrice: decimal.NewFromInt(50), PointsUsed: 99}

	spent, balance, err := ledger.Apply(context.Background(), &order, &user, 0, 0)
	require.NoError(t, err)

	require.Zero(t, spent)
	require.Equal(t, 42, balance)
	require.Zero(t, order.PointsUsed)
}

func TestRefund(t *testing.T) {
	ledger, store, user := newLedger(t, 80)
	order := models.Order{ID: "o1", PointsUsed: 25, PointsEarned: 5}

	err := ledger.Refund(context.Background(), &order, &user)
	require.NoError(t, err)

	require.Equal(t, 100, user.Points)
	require.Zero(t, order.PointsUsed)
	require.Zero(t, order.PointsEarned)

	persisted, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 100, persisted.Points)
}

func TestRefund_BalanceClampedAtZero(t *testing.T) {
	// Earned points already spent elsewhere cannot push the balance negative.
	ledger, _, user := newLedger(t, 1)
	order := models.Order{ID: "o1", PointsUsed: 0, PointsEarned: 10}

	err := ledger.Refund(context.Background(), &order, &user)
	require.NoError(t, err)
	require.Equal(t, 0, user.Points)
}

func TestRefund_NoMovement(t *testing.T) {
	ledger, store, user := newLedger(t, 50)
	order := models.Order{ID: "o1"}

	err := ledger.Refund(context.Background(), &order, &user)
	require.NoError(t, err)

	persisted, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 50, persisted.Points)
}
