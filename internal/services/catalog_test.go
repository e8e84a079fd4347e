package services

import (
	"testing"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_DefaultsWhenEmpty(t *testing.T) {
	catalog := NewCatalog(nil)

	products := catalog.All()
	require.Len(t, products, 1)
	assert.Equal(t, "VideoGen", products[0].Name)
	assert.Equal(t, "price_1SArE7Emd2R9npIsFqTWkgtL", products[0].PriceID)
	assert.Equal(t, models.CheckoutModePayment, products[0].Mode)
}

func TestCatalog_Lookups(t *testing.T) {
	catalog := NewCatalog([]models.Product{
		{ID: "prod_a", PriceID: "price_a", Name: "A"},
		{ID: "prod_b", PriceID: "price_b", Name: "B", Mode: models.CheckoutModeSubscription},
	})

	byPrice, ok := catalog.ByPriceID("price_b")
	require.True(t, ok)
	assert.Equal(t, "B", byPrice.Name)
	assert.Equal(t, models.CheckoutModeSubscription, byPrice.Mode)

	defaulted, ok := catalog.ByPriceID("price_a")
	require.True(t, ok)
	assert.Equal(t, models.CheckoutModePayment, defaulted.Mode)

	_, ok = catalog.ByPriceID("price_missing")
	assert.False(t, ok)
	_, ok = catalog.ByPriceID("")
	assert.False(t, ok)
}

func TestCatalog_IsImmutable(t *testing.T) {
	source := []models.Product{{ID: "prod_a", PriceID: "price_a", Name: "A"}}
	catalog := NewCatalog(source)

	source[0].Name = "changed"
	listed := catalog.All()
	listed[0].Name = "changed too"

	assert.Equal(t, "A", catalog.All()[0].Name)
}
