package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/repository"
)

const owner = "session:abc"

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newEngine(t *testing.T) (*Engine, *repository.MemoryStore, *recorder) {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveProduct(ctx, &models.Product{
		ID: "p1", Name: "Polo Shirt", Slug: "polo-shirt", Price: money.MustParse("10.00"), Stock: 5,
		Images: []string{"/images/polo.jpg"},
	}))
	require.NoError(t, store.SaveProduct(ctx, &models.Product{
		ID: "p2", Name: "Socks", Slug: "socks", Price: money.MustParse("5.50"), Stock: 1,
	}))
	require.NoError(t, store.SaveProduct(ctx, &models.Product{
		ID: "p3", Name: "Jacket", Slug: "jacket", Price: money.MustParse("120.00"), Stock: 2,
	}))

	rec := &recorder{}
	e := NewEngine(store, store, money.DefaultRules(), zap.NewNop()).WithEvents(rec)
	return e, store, rec
}

func TestAddItem_PricesFromFullItemSet(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 2})
	require.NoError(t, err)
	c, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p2", Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, "25.50", money.Format(c.ItemsPrice))
	assert.Equal(t, "10.00", money.Format(c.ShippingPrice))
	assert.Equal(t, "3.83", money.Format(c.TaxPrice))
	assert.Equal(t, "39.33", money.Format(c.TotalPrice))
	assert.True(t, c.TotalPrice.Equal(c.ItemsPrice.Add(c.ShippingPrice).Add(c.TaxPrice)))
}

func TestAddItem_MergesSameProduct(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 1})
	require.NoError(t, err)
	c, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 2})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Qty)
	assert.Equal(t, "Polo Shirt", c.Items[0].Name)
	assert.Equal(t, "/images/polo.jpg", c.Items[0].Image)
}

func TestAddItem_StockCheckCoversMergedQuantity(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 4})
	require.NoError(t, err)

	_, err = e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 2})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientStock))
	assert.True(t, apperr.IsValidation(err))

	c, err := store.FindCartByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[0].Qty, "failed add must leave the cart untouched")
}

func TestAddItem_Validation(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 0})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.AddItem(ctx, owner, AddItemRequest{Qty: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.AddItem(ctx, owner, AddItemRequest{ProductID: "missing", Qty: 1})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, apperr.MsgProductNotFound, err.Error())
}

func TestAddItem_FreeShippingAboveThreshold(t *testing.T) {
	e, _, _ := newEngine(t)

	c, err := e.AddItem(context.Background(), owner, AddItemRequest{ProductID: "p3", Qty: 1})
	require.NoError(t, err)
	assert.True(t, c.ShippingPrice.IsZero())
	assert.Equal(t, "138.00", money.Format(c.TotalPrice))
}

func TestRemoveItem_DecrementsThenDrops(t *testing.T) {
	e, _, rec := newEngine(t)
	ctx := context.Background()

	_, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 2})
	require.NoError(t, err)

	c, err := e.RemoveItem(ctx, owner, "p1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Qty)
	assert.Equal(t, "10.00", money.Format(c.ItemsPrice))

	c, err = e.RemoveItem(ctx, owner, "p1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalPrice.IsZero())

	assert.Len(t, rec.events, 3)
	assert.Equal(t, notify.EventCartItemRemoved, rec.events[2].Type)
}

func TestRemoveItem_NotFound(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.RemoveItem(ctx, owner, "p1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, apperr.MsgCartNotFound, err.Error())

	_, err = e.AddItem(ctx, owner, AddItemRequest{ProductID: "p2", Qty: 1})
	require.NoError(t, err)
	_, err = e.RemoveItem(ctx, owner, "p1")
	assert.Equal(t, apperr.MsgItemNotFound, err.Error())
}

func TestGetCart_EmptyWhenMissing(t *testing.T) {
	e, _, _ := newEngine(t)

	c, err := e.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, owner, c.OwnerID)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.TotalPrice.IsZero())
}

func TestMergeCarts(t *testing.T) {
	e, store, _ := newEngine(t)
	ctx := context.Background()
	user := models.UserOwner("u1")

	_, err := e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 1})
	require.NoError(t, err)
	_, err = e.AddItem(ctx, owner, AddItemRequest{ProductID: "p2", Qty: 1})
	require.NoError(t, err)
	_, err = e.AddItem(ctx, user, AddItemRequest{ProductID: "p1", Qty: 2})
	require.NoError(t, err)

	c, err := e.MergeCarts(ctx, owner, user)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[c.IndexOf("p1")].Qty)
	assert.Equal(t, "35.50", money.Format(c.ItemsPrice))

	src, err := store.FindCartByOwner(ctx, owner)
	require.NoError(t, err)
	assert.True(t, src.IsEmpty())
}

func TestMergeCarts_MissingSourceIsNoop(t *testing.T) {
	e, _, rec := newEngine(t)

	c, err := e.MergeCarts(context.Background(), owner, models.UserOwner("u1"))
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Empty(t, rec.events)
}

func TestResultWrappers(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	r := e.AddItemResult(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 1})
	assert.True(t, r.Success)
	assert.Equal(t, "Polo Shirt added to cart", r.Message)

	r = e.AddItemResult(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 1})
	assert.Equal(t, "Polo Shirt updated in cart", r.Message)

	r = e.AddItemResult(ctx, owner, AddItemRequest{ProductID: "p2", Qty: 9})
	assert.False(t, r.Success)
	assert.Equal(t, apperr.MsgNotEnoughStock, r.Message)

	r = e.RemoveItemResult(ctx, owner, "p1")
	assert.True(t, r.Success)
	assert.Equal(t, "Polo Shirt removed from cart", r.Message)
}

func TestAddItem_ConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	e, _, _ := newEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.AddItem(ctx, owner, AddItemRequest{ProductID: "p1", Qty: 1})
		}()
	}
	wg.Wait()

	c, err := e.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Items[0].Qty)
	assert.Equal(t, "50.00", money.Format(c.ItemsPrice))
}
