package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

var lockForUpdate = clause.Locking{Strength: "UPDATE"}

// GormStore is the MySQL-backed store for carts, orders and products.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormStore(cfg *config.MySQLConfig, logger *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &GormStore{db: db, logger: logger.Named("mysql")}
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---- carts

func (s *GormStore) FindCartByOwner(ctx context.Context, ownerID string) (*models.Cart, error) {
	var c models.Cart
	err := s.db.WithContext(ctx).
		Preload("Items", orderByPosition).
		Where("owner_id = ?", ownerID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.MsgCartNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("failed to find cart", err)
	}
	return &c, nil
}

func (s *GormStore) UpdateCart(ctx context.Context, ownerID string, create bool, fn func(c *models.Cart) error) (*models.Cart, error) {
	var out *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := lockCart(tx, ownerID, create)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		if err := saveCart(tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update cart")
	}
	return out, nil
}

func (s *GormStore) MergeCarts(ctx context.Context, fromOwner, toOwner string, fn func(src, dst *models.Cart) error) (*models.Cart, error) {
	var out *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dst, err := lockCart(tx, toOwner, true)
		if err != nil {
			return err
		}
		src, err := lockCart(tx, fromOwner, false)
		if apperr.Is(err, apperr.KindNotFound) {
			out = dst
			return nil
		}
		if err != nil {
			return err
		}
		if src.IsEmpty() {
			out = dst
			return nil
		}

		if err := fn(src, dst); err != nil {
			return err
		}
		if err := saveCart(tx, src); err != nil {
			return err
		}
		if err := saveCart(tx, dst); err != nil {
			return err
		}
		out = dst
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to merge carts")
	}
	return out, nil
}

// lockCart reads the owner's cart FOR UPDATE. With create set, an empty cart row is inserted
// first (a no-op when one exists) so concurrent first writes serialise on the same row.
func lockCart(tx *gorm.DB, ownerID string, create bool) (*models.Cart, error) {
	if create {
		seed := models.Cart{ID: uuid.NewString(), OwnerID: ownerID}
		if err := tx.Omit("Items").
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&seed).Error; err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}

	var c models.Cart
	err := tx.Clauses(lockForUpdate).
		Where("owner_id = ?", ownerID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.MsgCartNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	if err := tx.Where("cart_id = ?", c.ID).Order("position").Find(&c.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	return &c, nil
}

// saveCart rewrites the cart row and replaces its item rows.
func saveCart(tx *gorm.DB, c *models.Cart) error {
	if err := tx.Omit("Items").Save(c).Error; err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if err := tx.Where("cart_id = ?", c.ID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	if len(c.Items) == 0 {
		return nil
	}
	for i := range c.Items {
		c.Items[i].ID = 0
		c.Items[i].CartID = c.ID
		c.Items[i].Position = i
	}
	if err := tx.Create(&c.Items).Error; err != nil {
		return fmt.Errorf("failed to save cart items: %w", err)
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// ---- orders

func (s *GormStore) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", orderByPosition).
		Where("id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.MsgOrderNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("failed to find order", err)
	}
	return &o, nil
}

func (s *GormStore) ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", orderByPosition).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}

func (s *GormStore) CreateOrderFromCart(ctx context.Context, ownerID string, build func(c *models.Cart) (*models.Order, error)) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := lockCart(tx, ownerID, false)
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.EmptyCart()
		}
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return apperr.EmptyCart()
		}

		o, err := build(c)
		if err != nil {
			return err
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
			o.Items[i].Position = i
		}
		if err := tx.Create(o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		emptyCart(c)
		if err := saveCart(tx, c); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to create order")
	}
	return out, nil
}

// UpdateOrderPaymentState runs the transition as a conditional UPDATE; RowsAffected tells whether
// this caller won. Marking paid also takes the ordered quantities out of stock.
func (s *GormStore) UpdateOrderPaymentState(ctx context.Context, orderID string, u models.OrderStateUpdate) (bool, error) {
	at := u.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Clauses(lockForUpdate).Select("id").Where("id = ?", orderID).First(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(apperr.MsgOrderNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		q := tx.Model(&models.Order{}).Where("id = ?", orderID)
		var res *gorm.DB
		switch u.Transition {
		case models.TransitionSessionOpened:
			res = q.Where("is_paid = ?", false).
				Updates(models.Order{PaymentResult: u.PaymentResult})
		case models.TransitionPaid:
			res = q.Where("is_paid = ?", false).
				Updates(models.Order{IsPaid: true, PaidAt: &at, PaymentResult: u.PaymentResult})
		case models.TransitionDelivered:
			res = q.Where("is_paid = ? AND is_delivered = ?", true, false).
				Updates(models.Order{IsDelivered: true, DeliveredAt: &at})
		default:
			return fmt.Errorf("unknown order transition %s", u.Transition)
		}
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", u.Transition, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if u.Transition == models.TransitionPaid {
			return decrementStock(tx, orderID)
		}
		return nil
	})
	if err != nil {
		return false, translate(err, "failed to update order")
	}
	return applied, nil
}

func decrementStock(tx *gorm.DB, orderID string) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	for _, it := range items {
		if err := tx.Model(&models.Product{}).
			Where("id = ?", it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock - ?", it.Qty)).Error; err != nil {
			return fmt.Errorf("failed to decrement stock for %s: %w", it.ProductID, err)
		}
	}
	return nil
}

// ---- products

func (s *GormStore) FindProduct(ctx context.Context, productID string) (*models.Product, error) {
	return s.findProduct(ctx, "id = ?", productID)
}

func (s *GormStore) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.findProduct(ctx, "slug = ?", slug)
}

func (s *GormStore) findProduct(ctx context.Context, query string, arg string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.MsgProductNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("failed to find product", err)
	}
	return &p, nil
}

func (s *GormStore) ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, int64, error) {
	var (
		products []*models.Product
		total    int64
	)
	db := s.db.WithContext(ctx).Model(&models.Product{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count products", err)
	}
	q := db.Order("created_at DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, apperr.Internal("failed to list products", err)
	}
	return products, total, nil
}

func (s *GormStore) SaveProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Save(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validation("Product slug already exists")
	}
	if err != nil {
		return apperr.Internal("failed to save product", err)
	}
	return nil
}

func (s *GormStore) DeleteProduct(ctx context.Context, productID string) error {
	res := s.db.WithContext(ctx).Where("id = ?", productID).Delete(&models.Product{})
	if res.Error != nil {
		return apperr.Internal("failed to delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.MsgProductNotFound)
	}
	return nil
}

// translate keeps domain errors as they are and wraps everything else as Internal.
func translate(err error, message string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(message, err)
}
