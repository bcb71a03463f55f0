package order

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"fulfillment-system/internal/apperr"
	"fulfillment-system/internal/models"
	"fulfillment-system/internal/storage"
)

// PriceQuote is the result of pricing an order's items: the raw total, the
// total with special offers applied, and the loyalty points the order earns.
type PriceQuote struct {
	TotalPrice      decimal.Decimal
	DiscountedPrice decimal.Decimal
	LoyaltyPoints   int
}

// ComputePrices prices the given items against the current catalog.
//
// The raw total sums quantity times base price. The discounted total overlays
// the user's personal offers and the restaurant's general offers onto a
// per-dish best-price map with min(), so it never exceeds the raw total.
// Offers for dishes outside the order are ignored, and offer refs that cannot
// be resolved are skipped without aborting pricing. No side effects.
func ComputePrices(ctx context.Context, catalog storage.CatalogStore, items map[string]int,
	restaurantID string, user models.User) (PriceQuote, error) {

	var quote PriceQuote
	if len(items) == 0 {
		return quote, nil
	}

	dishes, err := catalog.GetDishesBatch(ctx, lo.Keys(items))
	if err != nil {
		return quote, err
	}

	bestPrices := make(map[string]decimal.Decimal, len(items))
	for dishID := range items {
		dish, ok := dishes[dishID]
		if !ok {
			return quote, apperr.New(apperr.KindNotFound, "no such dish with id: %s", dishID)
		}
		bestPrices[dishID] = dish.BasePrice
	}

	overlayOffers(bestPrices, resolveOffers(ctx, catalog, user.SpecialOfferIDs))

	if restaurant, err := catalog.GetRestaurant(ctx, restaurantID); err == nil {
		overlayOffers(bestPrices, resolveOffers(ctx, catalog, restaurant.SpecialOfferIDs))
	}

	for dishID, quantity := range items {
		qty := decimal.NewFromInt(int64(quantity))
		quote.TotalPrice = quote.TotalPrice.Add(dishes[dishID].BasePrice.Mul(qty))
		quote.DiscountedPrice = quote.DiscountedPrice.Add(bestPrices[dishID].Mul(qty))
		quote.LoyaltyPoints += dishes[dishID].Points * quantity
	}

	return quote, nil
}

// resolveOffers dereferences offer ids; failures are non-fatal and yield no offers
func resolveOffers(ctx context.Context, catalog storage.CatalogStore, offerIDs []string) []models.SpecialOffer {
	if len(offerIDs) == 0 {
		return nil
	}
	offers, err := catalog.GetOffersBatch(ctx, offerIDs)
	if err != nil {
		return nil
	}
	return offers
}

// overlayOffers lowers best prices where an offer beats the current price
func overlayOffers(bestPrices map[string]decimal.Decimal, offers []models.SpecialOffer) {
	for _, offer := range offers {
		current, ok := bestPrices[offer.DishID]
		if ok && offer.SpecialPrice.LessThan(current) {
			bestPrices[offer.DishID] = offer.SpecialPrice
		}
	}
}
