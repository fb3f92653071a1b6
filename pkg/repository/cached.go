package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/models"
)

// OrderStore is the order persistence contract the cache sits in front of.
type OrderStore interface {
	FindOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error)
	CreateOrderFromCart(ctx context.Context, ownerID string, build func(c *models.Cart) (*models.Order, error)) (*models.Order, error)
	UpdateOrderPaymentState(ctx context.Context, orderID string, u models.OrderStateUpdate) (bool, error)
}

type OrderCache interface {
	CacheOrder(ctx context.Context, o *models.Order) error
	GetCachedOrder(ctx context.Context, orderID string) (*models.Order, error)
	InvalidateOrder(ctx context.Context, orderID string) error
}

// CachedOrderStore reads orders through the cache. Only delivered orders are cached; every earlier
// state is read from the underlying store. Cache faults are logged and fall through to the store.
type CachedOrderStore struct {
	next   OrderStore
	cache  OrderCache
	logger *zap.Logger
}

func NewCachedOrderStore(next OrderStore, cache OrderCache, logger *zap.Logger) *CachedOrderStore {
	return &CachedOrderStore{next: next, cache: cache, logger: logger.Named("order-cache")}
}

func (s *CachedOrderStore) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.cache.GetCachedOrder(ctx, orderID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Order cache read failed", zap.String("order_id", orderID), zap.Error(err))
	}

	o, err = s.next.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsDelivered {
		return o, nil
	}
	if err := s.cache.CacheOrder(ctx, o); err != nil {
		s.logger.Warn("Order cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return o, nil
}

func (s *CachedOrderStore) ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.next.ListOrdersByUser(ctx, userID)
}

func (s *CachedOrderStore) CreateOrderFromCart(ctx context.Context, ownerID string, build func(c *models.Cart) (*models.Order, error)) (*models.Order, error) {
	return s.next.CreateOrderFromCart(ctx, ownerID, build)
}

func (s *CachedOrderStore) UpdateOrderPaymentState(ctx context.Context, orderID string, u models.OrderStateUpdate) (bool, error) {
	applied, err := s.next.UpdateOrderPaymentState(ctx, orderID, u)
	if cerr := s.cache.InvalidateOrder(ctx, orderID); cerr != nil {
		s.logger.Warn("Order cache invalidation failed", zap.String("order_id", orderID), zap.Error(cerr))
	}
	return applied, err
}
