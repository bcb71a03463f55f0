package order

import (
	"context"

	"github.com/samber/lo"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/storage"
)

// ValidateMembership checks that every dish is on the restaurant's menu.
// It runs before pricing and before stock reservation on every create or
// update of an order's items. An empty dish set passes trivially.
func ValidateMembership(ctx context.Context, catalog storage.CatalogStore, restaurantID string, dishIDs []string) error {
	if len(dishIDs) == 0 {
		return nil
	}

	members, err := catalog.GetRestaurantDishLinks(ctx, restaurantID, dishIDs)
	if err != nil {
		return err
	}

	missing := lo.Without(dishIDs, members...)
	if len(missing) > 0 {
		return apperr.New(apperr.KindInvalidInput,
			"incorrect dish ids %v - did not find dishes with those ids in specified restaurant", missing)
	}
	return nil
}
