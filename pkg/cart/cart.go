package cart

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/notify"
)

// Store persists carts keyed by owner id.
//
// UpdateCart is the atomic findCartByOwner + upsertCart pair: the store loads the owner's cart
// under a lock (or starts an empty one when create is true), runs fn, and writes the result in
// the same transaction. If fn returns an error nothing is written. A missing cart with create
// false yields a NotFound error.
type Store interface {
	FindCartByOwner(ctx context.Context, ownerID string) (*models.Cart, error)
	UpdateCart(ctx context.Context, ownerID string, create bool, fn func(c *models.Cart) error) (*models.Cart, error)
	// MergeCarts locks both carts; fn moves lines from src into dst.
	MergeCarts(ctx context.Context, fromOwner, toOwner string, fn func(src, dst *models.Cart) error) (*models.Cart, error)
}

type Catalog interface {
	FindProduct(ctx context.Context, productID string) (*models.Product, error)
}

type Publisher interface {
	Publish(e notify.Event)
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Engine struct {
	store   Store
	catalog Catalog
	rules   money.Rules
	events  Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewEngine(store Store, catalog Catalog, rules money.Rules, logger *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		catalog: catalog,
		rules:   rules,
		logger:  logger.Named("cart"),
	}
}

func (e *Engine) WithEvents(p Publisher) *Engine {
	e.events = p
	return e
}

func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// GetCart returns the owner's cart, or an empty priced cart when none exists yet.
func (e *Engine) GetCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if ownerID == "" {
		return nil, apperr.Validation("Cart owner is required")
	}
	c, err := e.store.FindCartByOwner(ctx, ownerID)
	if apperr.Is(err, apperr.KindNotFound) {
		c = &models.Cart{OwnerID: ownerID}
		c.Reprice(e.rules)
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem adds qty units of a catalog product, merging with an existing line for the same
// product. Name, slug, image and price always come from the catalog.
func (e *Engine) AddItem(ctx context.Context, ownerID string, req AddItemRequest) (*models.Cart, error) {
	c, _, _, err := e.addItem(ctx, ownerID, req)
	return c, err
}

func (e *Engine) addItem(ctx context.Context, ownerID string, req AddItemRequest) (*models.Cart, *models.Product, bool, error) {
	if ownerID == "" {
		return nil, nil, false, apperr.Validation("Cart owner is required")
	}
	if req.ProductID == "" {
		return nil, nil, false, apperr.Validation(apperr.MsgProductIDRequired)
	}
	if req.Qty < 1 {
		return nil, nil, false, apperr.Validation(apperr.MsgQuantityPositive)
	}

	product, err := e.catalog.FindProduct(ctx, req.ProductID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil, false, apperr.Validation(apperr.MsgProductNotFound)
	}
	if err != nil {
		return nil, nil, false, err
	}

	merged := false
	c, err := e.store.UpdateCart(ctx, ownerID, true, func(c *models.Cart) error {
		idx := c.IndexOf(product.ID)
		qty := req.Qty
		if idx >= 0 {
			qty += c.Items[idx].Qty
		}
		if product.Stock < qty {
			return apperr.InsufficientStock(apperr.MsgNotEnoughStock)
		}

		if idx >= 0 {
			c.Items[idx].Qty = qty
			merged = true
		} else {
			c.Items = append(c.Items, models.CartItem{
				ProductID: product.ID,
				Slug:      product.Slug,
				Name:      product.Name,
				Image:     product.FirstImage(),
				Price:     money.Round2(product.Price),
				Qty:       qty,
			})
		}
		c.Reprice(e.rules)
		return nil
	})
	e.metrics.CartMutation("add_item", err)
	if err != nil {
		return nil, nil, false, err
	}

	e.publish(notify.Event{
		Type:     notify.EventCartItemAdded,
		EntityID: c.ID,
		OwnerID:  ownerID,
		Data: map[string]interface{}{
			"product_id":  product.ID,
			"qty":         req.Qty,
			"items_price": money.Format(c.ItemsPrice),
		},
	})
	return c, product, merged, nil
}

// RemoveItem takes one unit of productID out of the cart and drops the line when it reaches zero.
func (e *Engine) RemoveItem(ctx context.Context, ownerID, productID string) (*models.Cart, error) {
	c, _, err := e.removeItem(ctx, ownerID, productID)
	return c, err
}

func (e *Engine) removeItem(ctx context.Context, ownerID, productID string) (*models.Cart, string, error) {
	if ownerID == "" {
		return nil, "", apperr.Validation("Cart owner is required")
	}
	if productID == "" {
		return nil, "", apperr.Validation(apperr.MsgProductIDRequired)
	}

	var name string
	c, err := e.store.UpdateCart(ctx, ownerID, false, func(c *models.Cart) error {
		idx := c.IndexOf(productID)
		if idx < 0 {
			return apperr.NotFound(apperr.MsgItemNotFound)
		}
		name = c.Items[idx].Name

		if c.Items[idx].Qty <= 1 {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		} else {
			c.Items[idx].Qty--
		}
		c.Reprice(e.rules)
		return nil
	})
	e.metrics.CartMutation("remove_item", err)
	if err != nil {
		return nil, "", err
	}

	e.publish(notify.Event{
		Type:     notify.EventCartItemRemoved,
		EntityID: c.ID,
		OwnerID:  ownerID,
		Data: map[string]interface{}{
			"product_id":  productID,
			"items_price": money.Format(c.ItemsPrice),
		},
	})
	return c, name, nil
}

// MergeCarts folds the anonymous session cart into the signed-in user's cart and empties the
// source. Quantities for the same product add up; stock is re-checked at payment time.
func (e *Engine) MergeCarts(ctx context.Context, fromOwner, toOwner string) (*models.Cart, error) {
	if fromOwner == "" || toOwner == "" {
		return nil, apperr.Validation("Cart owner is required")
	}
	if fromOwner == toOwner {
		return e.GetCart(ctx, toOwner)
	}

	moved := 0
	c, err := e.store.MergeCarts(ctx, fromOwner, toOwner, func(src, dst *models.Cart) error {
		for _, it := range src.Items {
			if idx := dst.IndexOf(it.ProductID); idx >= 0 {
				dst.Items[idx].Qty += it.Qty
			} else {
				it.ID = 0
				dst.Items = append(dst.Items, it)
			}
			moved++
		}
		src.Items = nil
		src.Reprice(e.rules)
		dst.Reprice(e.rules)
		return nil
	})
	e.metrics.CartMutation("merge", err)
	if err != nil {
		return nil, err
	}

	if moved > 0 {
		e.publish(notify.Event{
			Type:     notify.EventCartMerged,
			EntityID: c.ID,
			OwnerID:  toOwner,
			Data:     map[string]interface{}{"from_owner": fromOwner, "lines": moved},
		})
	}
	return c, nil
}

// AddItemResult is AddItem in the {success, message, data} shape the presentation layer renders.
func (e *Engine) AddItemResult(ctx context.Context, ownerID string, req AddItemRequest) apperr.Result {
	c, product, merged, err := e.addItem(ctx, ownerID, req)
	if err != nil {
		e.logFailure("add item", ownerID, err)
		return apperr.FromError(err, nil)
	}
	if merged {
		return apperr.OK(fmt.Sprintf("%s updated in cart", product.Name), c)
	}
	return apperr.OK(fmt.Sprintf("%s added to cart", product.Name), c)
}

func (e *Engine) RemoveItemResult(ctx context.Context, ownerID, productID string) apperr.Result {
	c, name, err := e.removeItem(ctx, ownerID, productID)
	if err != nil {
		e.logFailure("remove item", ownerID, err)
		return apperr.FromError(err, nil)
	}
	return apperr.OK(fmt.Sprintf("%s removed from cart", name), c)
}

func (e *Engine) publish(ev notify.Event) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}

func (e *Engine) logFailure(op, ownerID string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		e.logger.Error("Cart operation failed",
			zap.String("op", op),
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}
	e.logger.Debug("Cart operation rejected",
		zap.String("op", op),
		zap.String("owner_id", ownerID),
		zap.String("reason", err.Error()))
}
