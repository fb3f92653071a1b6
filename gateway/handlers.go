package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/order"
)

const (
	msgInvalidBody  = "Invalid request body"
	msgImageMissing = "Image file is required"
)

func respond(c *gin.Context, r apperr.Result) {
	c.JSON(r.HTTPStatus(), r)
}

func respondCreated(c *gin.Context, r apperr.Result) {
	if r.Success {
		c.JSON(http.StatusCreated, r)
		return
	}
	respond(c, r)
}

func fail(c *gin.Context, err error) {
	respond(c, apperr.FromError(err, nil))
}

func ok(c *gin.Context, data interface{}) {
	respond(c, apperr.OK("", data))
}

func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperr.Validation(msgInvalidBody))
		return false
	}
	return true
}

// @Summary List products
// @Tags products
// @Param page query int false "page number"
// @Success 200 {object} apperr.Result
// @Router /products [get]
func (g *Gateway) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	p, err := g.catalog.List(c.Request.Context(), page)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// @Summary Newest products
// @Tags products
// @Router /products/latest [get]
func (g *Gateway) latestProducts(c *gin.Context) {
	products, err := g.catalog.Latest(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, products)
}

// @Summary Product by slug
// @Tags products
// @Router /products/{slug} [get]
func (g *Gateway) productBySlug(c *gin.Context) {
	p, err := g.catalog.BySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

// @Summary Current cart
// @Tags cart
// @Router /cart [get]
func (g *Gateway) getCart(c *gin.Context) {
	cc, err := g.carts.GetCart(c.Request.Context(), c.GetString(ctxOwnerID))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cc)
}

// @Summary Add an item to the cart
// @Tags cart
// @Param body body cart.AddItemRequest true "product and quantity"
// @Router /cart/items [post]
func (g *Gateway) addCartItem(c *gin.Context) {
	var req cart.AddItemRequest
	if !bind(c, &req) {
		return
	}
	respond(c, g.carts.AddItemResult(c.Request.Context(), c.GetString(ctxOwnerID), req))
}

// @Summary Remove a product line from the cart
// @Tags cart
// @Router /cart/items/{productId} [delete]
func (g *Gateway) removeCartItem(c *gin.Context) {
	respond(c, g.carts.RemoveItemResult(c.Request.Context(), c.GetString(ctxOwnerID), c.Param("productId")))
}

// @Summary Place an order from the cart
// @Tags orders
// @Param body body order.CreateOrderRequest true "shipping address and payment method"
// @Security BearerAuth
// @Router /orders [post]
func (g *Gateway) createOrder(c *gin.Context) {
	var req order.CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	respondCreated(c, g.orders.CreateOrderResult(c.Request.Context(), c.GetString(ctxUserID), req))
}

// @Summary Orders of the signed-in user
// @Tags orders
// @Security BearerAuth
// @Router /orders [get]
func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.orders.ListOrders(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, orders)
}

// @Summary Order details
// @Tags orders
// @Security BearerAuth
// @Router /orders/{id} [get]
func (g *Gateway) getOrder(c *gin.Context) {
	o, err := g.orders.GetUserOrder(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, o)
}

// ownOrder stops callers from touching another user's order.
func (g *Gateway) ownOrder(c *gin.Context) bool {
	if _, err := g.orders.GetUserOrder(c.Request.Context(), c.GetString(ctxUserID), c.Param("id")); err != nil {
		fail(c, err)
		return false
	}
	return true
}

// @Summary Open a payment provider session
// @Tags orders
// @Security BearerAuth
// @Router /orders/{id}/payment-session [post]
func (g *Gateway) createPaymentSession(c *gin.Context) {
	if !g.ownOrder(c) {
		return
	}
	respond(c, g.orders.CreateProviderOrderResult(c.Request.Context(), c.Param("id")))
}

// @Summary Capture an approved payment session
// @Tags orders
// @Param body body order.ApproveRequest true "session id"
// @Security BearerAuth
// @Router /orders/{id}/payment-session/approve [post]
func (g *Gateway) approvePaymentSession(c *gin.Context) {
	if !g.ownOrder(c) {
		return
	}
	var req order.ApproveRequest
	if !bind(c, &req) {
		return
	}
	respond(c, g.orders.ApproveProviderOrderResult(c.Request.Context(), c.Param("id"), req))
}

// @Summary Mark a cash on delivery order paid
// @Tags admin
// @Security BearerAuth
// @Router /admin/orders/{id}/pay [put]
func (g *Gateway) markOrderPaid(c *gin.Context) {
	respond(c, g.orders.MarkPaidCashOnDeliveryResult(c.Request.Context(), c.Param("id")))
}

// @Summary Mark an order delivered
// @Tags admin
// @Security BearerAuth
// @Router /admin/orders/{id}/deliver [put]
func (g *Gateway) markOrderDelivered(c *gin.Context) {
	respond(c, g.orders.MarkDeliveredResult(c.Request.Context(), c.Param("id")))
}

// @Summary Audit trail of an order
// @Tags admin
// @Param limit query int false "maximum number of events"
// @Security BearerAuth
// @Router /admin/orders/{id}/history [get]
func (g *Gateway) orderHistory(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)
	events, err := g.audit.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		fail(c, apperr.Internal("failed to read order history", err))
		return
	}
	ok(c, events)
}

// @Summary Create a product
// @Tags admin
// @Param body body catalog.ProductInput true "product"
// @Security BearerAuth
// @Router /admin/products [post]
func (g *Gateway) createProduct(c *gin.Context) {
	var in catalog.ProductInput
	if !bind(c, &in) {
		return
	}
	respondCreated(c, g.catalog.CreateResult(c.Request.Context(), in))
}

// @Summary Update a product
// @Tags admin
// @Param body body catalog.ProductInput true "product"
// @Security BearerAuth
// @Router /admin/products/{id} [put]
func (g *Gateway) updateProduct(c *gin.Context) {
	var in catalog.ProductInput
	if !bind(c, &in) {
		return
	}
	respond(c, g.catalog.UpdateResult(c.Request.Context(), c.Param("id"), in))
}

// @Summary Delete a product
// @Tags admin
// @Security BearerAuth
// @Router /admin/products/{id} [delete]
func (g *Gateway) deleteProduct(c *gin.Context) {
	respond(c, g.catalog.DeleteResult(c.Request.Context(), c.Param("id")))
}

// @Summary Upload a product image
// @Tags admin
// @Accept multipart/form-data
// @Param image formData file true "image file"
// @Security BearerAuth
// @Router /admin/uploads [post]
func (g *Gateway) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, apperr.Validation(msgImageMissing))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, apperr.Internal("failed to open upload", err))
		return
	}
	defer f.Close()

	url, err := g.catalog.UploadImage(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
	if err != nil {
		fail(c, err)
		return
	}
	respondCreated(c, apperr.OK(catalog.MsgImageUploaded, gin.H{"url": url}))
}
