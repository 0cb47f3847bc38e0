package service

import (
	"testing"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeKey(t *testing.T) {
	base := ItemSelection{MenuItemID: itemPaneer, Quantity: 1, VariantID: "full"}

	a := base
	a.AddOns = []AddOnSelection{{AddOnID: "mint"}, {AddOnID: "cheese", Quantity: 2}}
	b := base
	b.Quantity = 7
	b.AddOns = []AddOnSelection{{AddOnID: "cheese", Quantity: 1}, {AddOnID: "mint", Quantity: 1}, {AddOnID: "cheese"}}
	assert.Equal(t, mergeKey(a), mergeKey(b), "add-on order, duplicates and line quantity do not matter")

	c := base
	c.SpecialInstructions = "extra spicy"
	assert.NotEqual(t, mergeKey(base), mergeKey(c))

	d := base
	d.VariantID = "kids"
	assert.NotEqual(t, mergeKey(base), mergeKey(d))

	e := a
	e.AddOns = []AddOnSelection{{AddOnID: "mint"}, {AddOnID: "cheese", Quantity: 1}}
	assert.NotEqual(t, mergeKey(a), mergeKey(e))
}

func TestResolveSelection(t *testing.T) {
	item := &models.MenuItem{
		ID: itemPaneer, Name: "Paneer Tikka", Price: dec("200"),
		Variants: models.Variants{{ID: "full", Name: "Full", PriceModifier: dec("50")}},
		AddOns:   models.AddOns{{ID: "cheese", Name: "Extra Cheese", Price: dec("30"), MaxQuantity: 2}},
	}

	res, err := resolveSelection(item, ItemSelection{
		MenuItemID: itemPaneer, Quantity: 1, VariantID: "full",
		AddOns: []AddOnSelection{{AddOnID: "cheese"}, {AddOnID: "cheese"}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.variant)
	assert.Equal(t, "Full", res.variant.Name)
	require.Len(t, res.addOns, 1)
	assert.Equal(t, 2, res.addOns[0].Quantity)
	assert.True(t, res.unitPrice.Equal(dec("310")))

	_, err = resolveSelection(item, ItemSelection{MenuItemID: itemPaneer, Quantity: 1, AddOns: []AddOnSelection{{AddOnID: "cheese", Quantity: 3}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCheckOrderable(t *testing.T) {
	item := &models.MenuItem{ID: "x", Name: "X", RestaurantID: restaurantID, IsAvailable: true}
	assert.NoError(t, checkOrderable(item, restaurantID))
	assert.ErrorIs(t, checkOrderable(item, "rest-2"), apperr.ErrMenuItemNotFound)

	item.IsAvailable = false
	assert.ErrorIs(t, checkOrderable(item, restaurantID), apperr.ErrMenuItemUnavailable)
}
