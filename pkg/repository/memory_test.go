package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
)

func seedCart(t *testing.T, s *MemoryStore, owner string) {
	t.Helper()
	_, err := s.UpdateCart(context.Background(), owner, true, func(c *models.Cart) error {
		c.Items = append(c.Items, models.CartItem{ProductID: "p1", Name: "Polo", Price: money.MustParse("10.00"), Qty: 2})
		c.Reprice(money.DefaultRules())
		return nil
	})
	require.NoError(t, err)
}

func seedOrder(t *testing.T, s *MemoryStore) *models.Order {
	t.Helper()
	seedCart(t, s, "user:u1")
	o, err := s.CreateOrderFromCart(context.Background(), "user:u1", func(c *models.Cart) (*models.Order, error) {
		return &models.Order{UserID: "u1", Items: models.SnapshotItems("", c.Items), TotalPrice: c.TotalPrice}, nil
	})
	require.NoError(t, err)
	return o
}

func TestMemoryStore_UpdateCartRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedCart(t, s, "session:a")

	_, err := s.UpdateCart(ctx, "session:a", false, func(c *models.Cart) error {
		c.Items[0].Qty = 99
		return errors.New("boom")
	})
	require.Error(t, err)

	c, err := s.FindCartByOwner(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Qty)

	_, err = s.UpdateCart(ctx, "session:missing", false, func(c *models.Cart) error { return nil })
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMemoryStore_ReturnedCartsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedCart(t, s, "session:a")

	c, err := s.FindCartByOwner(ctx, "session:a")
	require.NoError(t, err)
	c.Items[0].Qty = 50

	again, err := s.FindCartByOwner(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Qty)
}

func TestMemoryStore_CreateOrderEmptiesCart(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	o := seedOrder(t, s)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, o.ID, o.Items[0].OrderID)

	c, err := s.FindCartByOwner(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.TotalPrice.IsZero())

	_, err = s.CreateOrderFromCart(ctx, "user:u1", func(c *models.Cart) (*models.Order, error) {
		t.Fatal("build must not run for an empty cart")
		return nil, nil
	})
	assert.True(t, apperr.Is(err, apperr.KindEmptyCart))
}

func TestMemoryStore_GuardedTransitions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveProduct(ctx, &models.Product{ID: "p1", Slug: "polo", Stock: 5}))
	o := seedOrder(t, s)

	applied, err := s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionDelivered})
	require.NoError(t, err)
	assert.False(t, applied, "unpaid orders cannot be delivered")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionPaid, At: time.Now()})
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	p, err := s.FindProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	applied, err = s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{
		Transition:    models.TransitionSessionOpened,
		PaymentResult: &models.PaymentResult{Provider: "paypal", SessionID: "late"},
	})
	require.NoError(t, err)
	assert.False(t, applied, "sessions cannot be attached to paid orders")

	applied, err = s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionDelivered})
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = s.UpdateOrderPaymentState(ctx, "missing", models.OrderStateUpdate{Transition: models.TransitionPaid})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMemoryStore_Products(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, slug := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveProduct(ctx, &models.Product{Slug: slug, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	page, total, err := s.ListProducts(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Slug)

	rest, _, err := s.ListProducts(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a", rest[0].Slug)

	err = s.SaveProduct(ctx, &models.Product{Slug: "a"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	p, err := s.FindProductBySlug(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	assert.True(t, apperr.Is(s.DeleteProduct(ctx, p.ID), apperr.KindNotFound))
}

type mapCache struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	hits   int
}

func newMapCache() *mapCache {
	return &mapCache{orders: map[string]*models.Order{}}
}

func (m *mapCache) CacheOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *mapCache) GetCachedOrder(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrCacheMiss
	}
	m.hits++
	return o.Clone(), nil
}

func (m *mapCache) InvalidateOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, orderID)
	return nil
}

// pausingStore parks the first FindOrder after it has loaded the order, until resume is closed.
type pausingStore struct {
	*MemoryStore
	once   sync.Once
	loaded chan struct{}
	resume chan struct{}
}

func (p *pausingStore) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := p.MemoryStore.FindOrder(ctx, orderID)
	p.once.Do(func() {
		close(p.loaded)
		<-p.resume
	})
	return o, err
}

func TestCachedOrderStore_CachesOnlyDeliveredOrders(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	o := seedOrder(t, mem)

	cache := newMapCache()
	s := NewCachedOrderStore(mem, cache, zap.NewNop())

	for i := 0; i < 2; i++ {
		got, err := s.FindOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, got.IsPaid)
	}
	assert.Empty(t, cache.orders)

	applied, err := s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionPaid, At: time.Now()})
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Empty(t, cache.orders)

	applied, err = s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionDelivered, At: time.Now()})
	require.NoError(t, err)
	assert.True(t, applied)

	for i := 0; i < 2; i++ {
		got, err = s.FindOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDelivered)
	}
	assert.Equal(t, 1, cache.hits)
}

func TestCachedOrderStore_ReaderRacingPaidTransition(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	o := seedOrder(t, mem)

	slow := &pausingStore{MemoryStore: mem, loaded: make(chan struct{}), resume: make(chan struct{})}
	s := NewCachedOrderStore(slow, newMapCache(), zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		stale, err := s.FindOrder(ctx, o.ID)
		assert.NoError(t, err)
		assert.False(t, stale.IsPaid)
	}()
	<-slow.loaded

	applied, err := s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionPaid, At: time.Now()})
	require.NoError(t, err)
	require.True(t, applied)

	close(slow.resume)
	<-done

	got, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)

	applied, err = s.UpdateOrderPaymentState(ctx, o.ID, models.OrderStateUpdate{Transition: models.TransitionDelivered, At: time.Now()})
	require.NoError(t, err)
	assert.True(t, applied)
}
