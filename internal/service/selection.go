package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// AddOnSelection picks an add-on of a menu item by id.
type AddOnSelection struct {
	AddOnID  string `json:"addOnId" binding:"required"`
	Quantity int    `json:"quantity"`
}

// ItemSelection is a menu item with the options a diner chose. Prices are
// never taken from the client; they are resolved from the catalog.
type ItemSelection struct {
	MenuItemID          string           `json:"menuItemId" binding:"required"`
	Quantity            int              `json:"quantity" binding:"required,min=1"`
	VariantID           string           `json:"variantId,omitempty"`
	AddOns              []AddOnSelection `json:"addOns,omitempty" binding:"dive"`
	SpecialInstructions string           `json:"specialInstructions,omitempty"`
}

type resolvedItem struct {
	variant   *models.SelectedVariant
	addOns    models.SelectedAddOns
	unitPrice decimal.Decimal
}

// resolveSelection snapshots the chosen variant and add-ons from the catalog
// and computes the unit price.
func resolveSelection(item *models.MenuItem, sel ItemSelection) (resolvedItem, error) {
	var res resolvedItem

	if sel.VariantID != "" {
		v, ok := item.Variant(sel.VariantID)
		if !ok {
			return res, apperr.Wrap(apperr.ErrInvalidInput, "unknown variant %q for %s", sel.VariantID, item.Name)
		}
		res.variant = &models.SelectedVariant{ID: v.ID, Name: v.Name, PriceModifier: v.PriceModifier}
	}

	for _, a := range normalizeAddOns(sel.AddOns) {
		addOn, ok := item.AddOn(a.AddOnID)
		if !ok {
			return res, apperr.Wrap(apperr.ErrInvalidInput, "unknown add-on %q for %s", a.AddOnID, item.Name)
		}
		if addOn.MaxQuantity > 0 && a.Quantity > addOn.MaxQuantity {
			return res, apperr.Wrap(apperr.ErrInvalidInput, "add-on %s allows at most %d", addOn.Name, addOn.MaxQuantity)
		}
		res.addOns = append(res.addOns, models.SelectedAddOn{
			AddOnID:   addOn.ID,
			Name:      addOn.Name,
			Quantity:  a.Quantity,
			UnitPrice: addOn.Price,
		})
	}

	res.unitPrice = pricing.ItemPrice(item.Price, res.variant, res.addOns)
	return res, nil
}

// normalizeAddOns defaults quantities to 1, folds duplicate ids and sorts by id.
func normalizeAddOns(in []AddOnSelection) []AddOnSelection {
	if len(in) == 0 {
		return nil
	}
	qty := make(map[string]int, len(in))
	for _, a := range in {
		q := a.Quantity
		if q <= 0 {
			q = 1
		}
		qty[a.AddOnID] += q
	}
	out := make([]AddOnSelection, 0, len(qty))
	for id, q := range qty {
		out = append(out, AddOnSelection{AddOnID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddOnID < out[j].AddOnID })
	return out
}

// mergeKey identifies cart lines that should be folded into one row:
// same menu item, instructions, variant and add-ons.
func mergeKey(sel ItemSelection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\x00%s\x00%s", sel.MenuItemID, strings.TrimSpace(sel.SpecialInstructions), sel.VariantID)
	for _, a := range normalizeAddOns(sel.AddOns) {
		fmt.Fprintf(&b, "\x00%s*%d", a.AddOnID, a.Quantity)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func checkOrderable(item *models.MenuItem, restaurantID string) error {
	if item.RestaurantID != restaurantID {
		return apperr.Wrap(apperr.ErrMenuItemNotFound, "%s", item.ID)
	}
	if !item.IsAvailable {
		return apperr.Wrap(apperr.ErrMenuItemUnavailable, "%s", item.Name)
	}
	return nil
}

func selectionFromCart(ci models.CartItem) ItemSelection {
	sel := ItemSelection{
		MenuItemID:          ci.MenuItemID,
		Quantity:            ci.Quantity,
		SpecialInstructions: ci.SpecialInstructions,
	}
	if ci.SelectedVariant != nil {
		sel.VariantID = ci.SelectedVariant.ID
	}
	for _, a := range ci.SelectedAddOns {
		sel.AddOns = append(sel.AddOns, AddOnSelection{AddOnID: a.AddOnID, Quantity: a.Quantity})
	}
	return sel
}
