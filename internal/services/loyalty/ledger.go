// Package loyalty implements the loyalty ledger: capped point redemption and
// point accrual applied during order finalization.
package loyalty

import (
	"context"

	"fulfillment-system/internal/models"
	"fulfillment-system/internal/storage"
)

// Ledger is the sole mutator of user point balances on the ordering path
type Ledger struct {
	users storage.UserStore
}

// NewLedger creates a loyalty ledger over the given user store
func NewLedger(users storage.UserStore) *Ledger {
	return &Ledger{users: users}
}

// Apply spends and accrues loyalty points for a finalized order.
//
// The spend is capped at the user's balance and at the integer part of the
// discounted total. When nothing is spent and nothing is earned the balance
// write is skipped entirely. The order's points fields are set in place; the
// user's balance is persisted and mirrored on the passed user.
func (l *Ledger) Apply(ctx context.Context, order *models.Order, user *models.User, pointsToSpend, pointsToEarn int) (int, int, error) {
	if pointsToSpend == 0 && pointsToEarn == 0 {
		order.PointsUsed = 0
		return 0, user.Points, nil
	}

	spent := pointsToSpend
	if user.Points < spent {
		spent = user.Points
	}
	if priceCap := int(order.DiscountedPrice.IntPart()); priceCap < spent {
		spent = priceCap
	}

	newBalance := user.Points - spent + pointsToEarn

	order.PointsUsed = spent
	order.PointsEarned = pointsToEarn

	if err := l.users.SetUserPoints(ctx, user.ID, newBalance); err != nil {
		return 0, user.Points, err
	}
	user.Points = newBalance

	return spent, newBalance, nil
}

// Refund reverses a cancelled order's point movement: spent points return to
// the user, earned points are revoked. The balance never goes below zero.
func (l *Ledger) Refund(ctx context.Context, order *models.Order, user *models.User) error {
	if order.PointsUsed == 0 && order.PointsEarned == 0 {
		return nil
	}

	newBalance := user.Points + order.PointsUsed - order.PointsEarned
	if newBalance < 0 {
		newBalance = 0
	}

	if err := l.users.SetUserPoints(ctx, user.ID, newBalance); err != nil {
		return err
	}
	user.Points = newBalance
	order.PointsUsed = 0
	order.PointsEarned = 0
	return nil
}
