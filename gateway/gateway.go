package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/example/storefront/docs"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/order"
)

// AuditReader serves an entity's recorded events.
type AuditReader interface {
	History(ctx context.Context, entityID string, limit int64) ([]notify.Event, error)
}

// Services are the in-process components the HTTP surface exposes. Audit and Metrics are optional.
type Services struct {
	Carts   *cart.Engine
	Orders  *order.Service
	Catalog *catalog.Service
	Audit   AuditReader
	Metrics *metrics.Metrics
}

type Gateway struct {
	config   *config.Config
	carts    *cart.Engine
	orders   *order.Service
	catalog  *catalog.Service
	audit    AuditReader
	metrics  *metrics.Metrics
	verifier *tokenVerifier
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, svc Services, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.Named("gateway")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metricsMiddleware(svc.Metrics))
	router.Use(cors.New(corsConfig(cfg.Gateway.AllowOrigins)))

	return &Gateway{
		config:   cfg,
		carts:    svc.Carts,
		orders:   svc.Orders,
		catalog:  svc.Catalog,
		audit:    svc.Audit,
		metrics:  svc.Metrics,
		verifier: newTokenVerifier(&cfg.Auth),
		logger:   logger,
		router:   router,
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowOriginFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g.metrics != nil {
		g.router.GET("/metrics", gin.WrapH(g.metrics.Handler()))
	}
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := g.router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/latest", g.latestProducts)
			products.GET("/:slug", g.productBySlug)
		}

		carts := v1.Group("/cart", g.identity())
		{
			carts.GET("", g.getCart)
			carts.POST("/items", g.addCartItem)
			carts.DELETE("/items/:productId", g.removeCartItem)
		}

		orders := v1.Group("/orders", g.identity(), requireUser())
		{
			orders.POST("", g.createOrder)
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.POST("/:id/payment-session", g.createPaymentSession)
			orders.POST("/:id/payment-session/approve", g.approvePaymentSession)
		}

		admin := v1.Group("/admin", g.identity(), requireUser(), requireAdmin())
		{
			admin.PUT("/orders/:id/pay", g.markOrderPaid)
			admin.PUT("/orders/:id/deliver", g.markOrderDelivered)
			if g.audit != nil {
				admin.GET("/orders/:id/history", g.orderHistory)
			}
			admin.POST("/products", g.createProduct)
			admin.PUT("/products/:id", g.updateProduct)
			admin.DELETE("/products/:id", g.deleteProduct)
			admin.POST("/uploads", g.uploadImage)
		}
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Gateway.Address()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
