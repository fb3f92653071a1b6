package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Driver: DriverMemory},
		Pricing: config.PricingConfig{FreeShippingThreshold: "100.00", FlatShipping: "10.00", TaxRate: "0.15"},
		Payment: config.PaymentConfig{Currency: "USD"},
	}
}

func TestNew_MemoryWiring(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	require.NoError(t, a.Store.SaveProduct(ctx, &models.Product{
		ID: "p1", Name: "Polo Shirt", Slug: "polo-shirt", Price: money.MustParse("40.00"), Stock: 3,
	}))

	c, err := a.Carts.AddItem(ctx, models.SessionOwner("s1"), cart.AddItemRequest{ProductID: "p1", Qty: 3})
	require.NoError(t, err)
	assert.Equal(t, "120.00", money.Format(c.ItemsPrice))
	assert.True(t, c.ShippingPrice.IsZero())

	p, err := a.Catalog.BySlug(ctx, "polo-shirt")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.NoError(t, a.Notifier.Flush(0))
}

func TestNew_Rejections(t *testing.T) {
	ctx := context.Background()

	cfg := memoryConfig()
	cfg.Storage.Driver = "cassandra"
	_, err := New(ctx, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown storage driver")

	cfg = memoryConfig()
	cfg.Pricing.TaxRate = "lots"
	_, err = New(ctx, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "pricing")
}
