package repository

import (
	"context"

	"pricewatch/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductRepository defines the data access contract for tracked products.
// Workers and handlers depend on this interface, not on the concrete GORM
// implementation, enabling clean unit testing via stubs.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByASIN(ctx context.Context, asin string) (*model.Product, error)
	// ListActive returns products the price cycle visits: active, not archived.
	ListActive(ctx context.Context) ([]model.Product, error)
	// ListAll returns every product including archived ones. Recall scans use
	// this: recalls do not expire with the retention window.
	ListAll(ctx context.Context) ([]model.Product, error)
	ListArchived(ctx context.Context) ([]model.Product, error)
	// ListExpired returns non-archived products whose retention window passed.
	ListExpired(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error

	// DB exposes the underlying *gorm.DB so callers can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) FindByASIN(ctx context.Context, asin string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("asin = ?", asin).First(&p).Error
	return &p, err
}

func (r *productRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_archived = ? AND is_active = ?", false, true).
		Order("created_at DESC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&products).Error
	return products, err
}

func (r *productRepo) ListArchived(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_archived = ?", true).
		Order("archived_at DESC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListExpired(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_archived = ? AND expires_at IS NOT NULL AND expires_at < CURRENT_TIMESTAMP", false).
		Find(&products).Error
	return products, err
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Product{}, "id = ?", id).Error
}

func (r *productRepo) DB() *gorm.DB { return r.db }
