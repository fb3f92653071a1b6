package catalog

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/notify"
)

const (
	defaultLatestLimit = 4
	defaultPageSize    = 12

	MsgProductCreated = "Product created successfully"
	MsgProductUpdated = "Product updated successfully"
	MsgProductDeleted = "Product deleted successfully"
	MsgImageUploaded  = "Image uploaded successfully"

	msgRatingRange = "Rating must be a number between 0 and 5"
)

var maxRating = decimal.NewFromInt(5)

type Store interface {
	FindProduct(ctx context.Context, productID string) (*models.Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, int64, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, productID string) error
}

type Cache interface {
	CacheProduct(ctx context.Context, p *models.Product) error
	GetCachedProduct(ctx context.Context, slug string) (*models.Product, error)
	InvalidateProduct(ctx context.Context, slug string) error
}

type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}

type Publisher interface {
	Publish(e notify.Event)
}

// ProductInput is the admin product form.
type ProductInput struct {
	Name        string   `json:"name" validate:"required,min=3"`
	Slug        string   `json:"slug" validate:"required,min=3"`
	Category    string   `json:"category" validate:"required,uuid"`
	Brand       string   `json:"brand" validate:"required,min=3"`
	Description string   `json:"description" validate:"required,min=3"`
	Images      []string `json:"images" validate:"dive,url"`
	Price       string   `json:"price" validate:"required"`
	Rating      string   `json:"rating"`
	Stock       int      `json:"stock" validate:"gte=0"`
	IsFeatured  bool     `json:"is_featured"`
	Banner      *string  `json:"banner"`
}

type Page struct {
	Items      []*models.Product `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

type Service struct {
	store       Store
	cache       Cache
	uploader    Uploader
	events      Publisher
	validate    *validator.Validate
	latestLimit int
	pageSize    int
	logger      *zap.Logger
}

func NewService(store Store, cfg *config.CatalogConfig, logger *zap.Logger) *Service {
	s := &Service{
		store:       store,
		validate:    validator.New(),
		latestLimit: cfg.LatestLimit,
		pageSize:    cfg.PageSize,
		logger:      logger.Named("catalog"),
	}
	if s.latestLimit <= 0 {
		s.latestLimit = defaultLatestLimit
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	return s
}

func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

func (s *Service) WithUploader(u Uploader) *Service {
	s.uploader = u
	return s
}

func (s *Service) WithEvents(p Publisher) *Service {
	s.events = p
	return s
}

// Latest returns the newest products for the home page.
func (s *Service) Latest(ctx context.Context) ([]*models.Product, error) {
	products, _, err := s.store.ListProducts(ctx, 0, s.latestLimit)
	return products, err
}

func (s *Service) List(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	products, total, err := s.store.ListProducts(ctx, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      products,
		Total:      total,
		Page:       page,
		TotalPages: int((total + int64(s.pageSize) - 1) / int64(s.pageSize)),
	}, nil
}

// BySlug reads through the cache when one is configured.
func (s *Service) BySlug(ctx context.Context, slug string) (*models.Product, error) {
	if s.cache != nil {
		if p, err := s.cache.GetCachedProduct(ctx, slug); err == nil {
			return p, nil
		}
	}

	p, err := s.store.FindProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, p); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return p, nil
}

// FindProduct always reads the store; the cart relies on current price and stock.
func (s *Service) FindProduct(ctx context.Context, productID string) (*models.Product, error) {
	return s.store.FindProduct(ctx, productID)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	v, err := s.check(in)
	if err != nil {
		return nil, err
	}

	p := &models.Product{}
	apply(p, in, v)
	if err := s.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("slug", p.Slug))
	s.publish(notify.EventProductCreated, p)
	return p, nil
}

// Update rewrites a product. Existing orders keep the prices they were placed with.
func (s *Service) Update(ctx context.Context, productID string, in ProductInput) (*models.Product, error) {
	v, err := s.check(in)
	if err != nil {
		return nil, err
	}

	p, err := s.store.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	oldSlug := p.Slug
	apply(p, in, v)
	if err := s.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, oldSlug, p.Slug)
	s.logger.Info("Product updated", zap.String("product_id", p.ID))
	s.publish(notify.EventProductUpdated, p)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, productID string) error {
	p, err := s.store.FindProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		return err
	}

	s.invalidate(ctx, p.Slug)
	s.logger.Info("Product deleted", zap.String("product_id", productID))
	s.publish(notify.EventProductDeleted, p)
	return nil
}

func (s *Service) UploadImage(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	if s.uploader == nil {
		return "", apperr.Internal("image uploads are not configured", errors.New("no uploader"))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation("Only image uploads are allowed")
	}
	url, err := s.uploader.Upload(ctx, filename, contentType, r, size)
	if err != nil {
		return "", apperr.Internal("failed to upload image", err)
	}
	return url, nil
}

func (s *Service) CreateResult(ctx context.Context, in ProductInput) apperr.Result {
	p, err := s.Create(ctx, in)
	if err != nil {
		return s.fail("create", err)
	}
	return apperr.OK(MsgProductCreated, p)
}

func (s *Service) UpdateResult(ctx context.Context, productID string, in ProductInput) apperr.Result {
	p, err := s.Update(ctx, productID, in)
	if err != nil {
		return s.fail("update", err)
	}
	return apperr.OK(MsgProductUpdated, p)
}

func (s *Service) DeleteResult(ctx context.Context, productID string) apperr.Result {
	if err := s.Delete(ctx, productID); err != nil {
		return s.fail("delete", err)
	}
	return apperr.OK(MsgProductDeleted, nil)
}

func (s *Service) fail(op string, err error) apperr.Result {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error("Product operation failed", zap.String("op", op), zap.Error(err))
	}
	return apperr.FromError(err, nil)
}

type checked struct {
	price  decimal.Decimal
	rating decimal.Decimal
}

func (s *Service) check(in ProductInput) (checked, error) {
	if err := s.validate.Struct(in); err != nil {
		return checked{}, apperr.FromValidator(err)
	}
	price, err := money.ParsePrice(in.Price)
	if err != nil {
		return checked{}, err
	}
	rating, err := parseRating(in.Rating)
	if err != nil {
		return checked{}, err
	}
	return checked{price: price, rating: rating}, nil
}

// parseRating treats an empty rating as 0.
func parseRating(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	r, err := decimal.NewFromString(s)
	if err != nil || r.IsNegative() || r.GreaterThan(maxRating) {
		return decimal.Zero, apperr.Validation(msgRatingRange)
	}
	return money.Round2(r), nil
}

func apply(p *models.Product, in ProductInput, v checked) {
	p.Name = strings.TrimSpace(in.Name)
	p.Slug = strings.TrimSpace(in.Slug)
	p.Category = in.Category
	p.Brand = in.Brand
	p.Description = in.Description
	p.Images = append([]string(nil), in.Images...)
	p.Price = v.price
	p.Rating = v.rating
	p.Stock = in.Stock
	p.IsFeatured = in.IsFeatured
	p.Banner = in.Banner
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	for _, slug := range slugs {
		if err := s.cache.InvalidateProduct(ctx, slug); err != nil {
			s.logger.Warn("Product cache invalidation failed", zap.String("slug", slug), zap.Error(err))
		}
	}
}

func (s *Service) publish(eventType string, p *models.Product) {
	if s.events == nil {
		return
	}
	s.events.Publish(notify.Event{
		Type:     eventType,
		EntityID: p.ID,
		Data: map[string]interface{}{
			"slug":  p.Slug,
			"price": money.Format(p.Price),
			"stock": p.Stock,
		},
	})
}
