package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

// MemoryStore keeps carts, orders and products in process memory. A single mutex serialises
// every write, which gives the same atomicity the SQL store gets from row locks.
type MemoryStore struct {
	mu       sync.Mutex
	carts    map[string]*models.Cart
	orders   map[string]*models.Order
	products map[string]*models.Product
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:    make(map[string]*models.Cart),
		orders:   make(map[string]*models.Order),
		products: make(map[string]*models.Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---- carts

func (s *MemoryStore) FindCartByOwner(ctx context.Context, ownerID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[ownerID]
	if !ok {
		return nil, apperr.NotFound(apperr.MsgCartNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) UpdateCart(ctx context.Context, ownerID string, create bool, fn func(c *models.Cart) error) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working, err := s.loadCart(ownerID, create)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	s.saveCart(working)
	return working.Clone(), nil
}

func (s *MemoryStore) MergeCarts(ctx context.Context, fromOwner, toOwner string, fn func(src, dst *models.Cart) error) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst, _ := s.loadCart(toOwner, true)
	stored, ok := s.carts[fromOwner]
	if !ok || stored.IsEmpty() {
		return dst, nil
	}
	src := stored.Clone()

	if err := fn(src, dst); err != nil {
		return nil, err
	}
	s.saveCart(src)
	s.saveCart(dst)
	return dst.Clone(), nil
}

func (s *MemoryStore) loadCart(ownerID string, create bool) (*models.Cart, error) {
	if c, ok := s.carts[ownerID]; ok {
		return c.Clone(), nil
	}
	if !create {
		return nil, apperr.NotFound(apperr.MsgCartNotFound)
	}
	return &models.Cart{ID: uuid.NewString(), OwnerID: ownerID}, nil
}

func (s *MemoryStore) saveCart(c *models.Cart) {
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.carts[c.OwnerID] = c.Clone()
}

// ---- orders

func (s *MemoryStore) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperr.NotFound(apperr.MsgOrderNotFound)
	}
	return o.Clone(), nil
}

func (s *MemoryStore) ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateOrderFromCart(ctx context.Context, ownerID string, build func(c *models.Cart) (*models.Order, error)) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[ownerID]
	if !ok || c.IsEmpty() {
		return nil, apperr.EmptyCart()
	}
	working := c.Clone()

	o, err := build(working)
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.orders[o.ID] = o.Clone()

	emptyCart(working)
	s.saveCart(working)

	return o.Clone(), nil
}

func (s *MemoryStore) UpdateOrderPaymentState(ctx context.Context, orderID string, u models.OrderStateUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false, apperr.NotFound(apperr.MsgOrderNotFound)
	}

	at := u.At
	if at.IsZero() {
		at = s.now()
	}

	switch u.Transition {
	case models.TransitionSessionOpened:
		if o.IsPaid {
			return false, nil
		}
		o.PaymentResult = clonePaymentResult(u.PaymentResult)
	case models.TransitionPaid:
		if o.IsPaid {
			return false, nil
		}
		o.IsPaid = true
		o.PaidAt = &at
		if u.PaymentResult != nil {
			o.PaymentResult = clonePaymentResult(u.PaymentResult)
		}
		for _, it := range o.Items {
			if p, ok := s.products[it.ProductID]; ok {
				p.Stock -= it.Qty
			}
		}
	case models.TransitionDelivered:
		if !o.IsPaid || o.IsDelivered {
			return false, nil
		}
		o.IsDelivered = true
		o.DeliveredAt = &at
	default:
		return false, apperr.Internal("unknown order transition", nil)
	}
	o.UpdatedAt = s.now()
	return true, nil
}

// emptyCart clears a cart after checkout. An empty cart costs nothing, whatever the rules.
func emptyCart(c *models.Cart) {
	c.Items = nil
	c.ItemsPrice = decimal.Zero
	c.ShippingPrice = decimal.Zero
	c.TaxPrice = decimal.Zero
	c.TotalPrice = decimal.Zero
}

func clonePaymentResult(pr *models.PaymentResult) *models.PaymentResult {
	if pr == nil {
		return nil
	}
	cp := *pr
	return &cp
}

// ---- products

func (s *MemoryStore) FindProduct(ctx context.Context, productID string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, apperr.NotFound(apperr.MsgProductNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(apperr.MsgProductNotFound)
}

// ListProducts returns products newest first.
func (s *MemoryStore) ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []*models.Product{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) SaveProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.products {
		if other.Slug == p.Slug && id != p.ID {
			return apperr.Validation("Product slug already exists")
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	if existing, ok := s.products[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	cp := *p
	cp.Images = append([]string(nil), p.Images...)
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return apperr.NotFound(apperr.MsgProductNotFound)
	}
	delete(s.products, productID)
	return nil
}
