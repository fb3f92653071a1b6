// Package app wires the storefront components from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/order"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/storage"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Store is everything the storefront persists. GormStore and MemoryStore both satisfy it.
type Store interface {
	cart.Store
	cart.Catalog
	catalog.Store
	order.Store
}

type App struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Store    Store
	Notifier *notify.Notifier
	Audit    *repository.MongoRepository
	Carts    *cart.Engine
	Orders   *order.Service
	Catalog  *catalog.Service

	closers []func(ctx context.Context) error
	logger  *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New(), logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	rules, err := money.NewRules(cfg.Pricing.FreeShippingThreshold, cfg.Pricing.FlatShipping, cfg.Pricing.TaxRate)
	if err != nil {
		return fmt.Errorf("failed to load pricing rules: %w", err)
	}

	if err := a.openStore(); err != nil {
		return err
	}
	var orders order.Store = a.Store
	var products catalog.Cache

	if cfg.Storage.Cache {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		a.onClose(func(context.Context) error { return redisRepo.Close() })
		if err := redisRepo.Ping(ctx); err != nil {
			a.logger.Warn("Redis connection failed, caching disabled", zap.Error(err))
		} else {
			a.logger.Info("Redis connected successfully")
			orders = repository.NewCachedOrderStore(a.Store, redisRepo, a.logger)
			products = redisRepo
		}
	}

	if err := a.openNotifier(ctx); err != nil {
		return err
	}

	providers, err := a.paymentProviders()
	if err != nil {
		return err
	}

	a.Carts = cart.NewEngine(a.Store, a.Store, rules, a.logger).
		WithEvents(a.Notifier).
		WithMetrics(a.Metrics)
	a.Orders = order.NewService(orders, providers, rules, cfg.Payment.Currency, a.logger).
		WithEvents(a.Notifier).
		WithMetrics(a.Metrics)
	a.Catalog = catalog.NewService(a.Store, &cfg.Catalog, a.logger).WithEvents(a.Notifier)
	if products != nil {
		a.Catalog.WithCache(products)
	}

	if cfg.MinIO.Endpoint != "" {
		uploader, err := storage.NewMinIOUploader(ctx, &cfg.MinIO, a.logger)
		if err != nil {
			return fmt.Errorf("failed to set up image storage: %w", err)
		}
		a.Catalog.WithUploader(uploader)
	}
	return nil
}

func (a *App) openStore() error {
	switch a.Config.Storage.Driver {
	case DriverMemory:
		a.logger.Warn("Using in-memory storage, data is lost on restart")
		a.Store = repository.NewMemoryStore()
		return nil
	case DriverMySQL, "":
		gs, err := repository.NewGormStore(&a.Config.MySQL, a.logger)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return gs.Close() })
		a.Store = gs
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", a.Config.Storage.Driver)
	}
}

// openNotifier records the audit trail in MongoDB when a URI is configured. Without one the
// audit actor only logs.
func (a *App) openNotifier(ctx context.Context) error {
	var sink notify.AuditSink
	if a.Config.MongoDB.URI != "" {
		mongoRepo, err := repository.NewMongoRepository(ctx, &a.Config.MongoDB)
		if err != nil {
			return err
		}
		a.onClose(mongoRepo.Close)
		a.Audit = mongoRepo
		sink = mongoRepo
	}

	n, err := notify.NewNotifier(sink, a.logger)
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) error {
		if err := n.Flush(5 * time.Second); err != nil {
			a.logger.Warn("Audit flush failed", zap.Error(err))
		}
		return n.Close()
	})
	a.Notifier = n
	return nil
}

func (a *App) paymentProviders() (*payment.Registry, error) {
	cfg := &a.Config.Payment
	reg := payment.NewRegistry()

	if cfg.PayPal.ClientID != "" {
		pp, err := payment.NewPayPalProvider(cfg)
		if err != nil {
			return nil, err
		}
		reg.Register(models.PaymentMethodPayPal, payment.NewGuard(pp, cfg, a.Metrics, a.logger))
	}
	if cfg.Stripe.SecretKey != "" {
		reg.Register(models.PaymentMethodStripe, payment.NewGuard(payment.NewStripeProvider(cfg), cfg, a.Metrics, a.logger))
	}
	return reg, nil
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Failed to release resource", zap.Error(err))
		}
	}
	a.closers = nil
}
