package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
)

// Repository persists catalog products and categories.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ProductFilter narrows product listings. Nil fields are ignored.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Family     *enums.CategoryFamily
	Active     *bool
	Search     string
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter, params pagination.Params, cursor *pagination.Cursor) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Preload("Category")
	if filter.CategoryID != nil {
		query = query.Where("products.category_id = ?", *filter.CategoryID)
	}
	if filter.Family != nil {
		query = query.Where("products.category_id IN (?)",
			r.db.WithContext(ctx).Model(&models.ProductCategory{}).Select("id").Where("family = ?", *filter.Family))
	}
	if filter.Active != nil {
		query = query.Where("products.is_active = ?", *filter.Active)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(products.code) LIKE ? OR LOWER(products.name) LIKE ?)", like, like)
	}

	var rows []models.Product
	if err := pagination.Apply(query, params, cursor).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// SaveProduct writes every column of an existing product.
func (r *Repository) SaveProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Save(product).Error
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	var rows []models.ProductCategory
	err := r.db.WithContext(ctx).
		Order("display_order ASC").
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.ProductCategory, error) {
	var category models.ProductCategory
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.ProductCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) SaveCategory(ctx context.Context, category *models.ProductCategory) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductCategory{}).Error
}

// CountProductsInCategory counts active and inactive products alike.
func (r *Repository) CountProductsInCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	return count, err
}

// ClientPricesBelow returns the product's custom-price rows that sit under floor.
// Discount rows are excluded, they always resolve relative to the current base.
func (r *Repository) ClientPricesBelow(ctx context.Context, productID uuid.UUID, floor decimal.Decimal) ([]models.ClientPrice, error) {
	var rows []models.ClientPrice
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	below := rows[:0]
	for _, row := range rows {
		if row.CustomPrice.IsPositive() && row.CustomPrice.LessThan(floor) {
			below = append(below, row)
		}
	}
	return below, nil
}

// LiftClientPrice raises a custom price with an optimistic version check.
func (r *Repository) LiftClientPrice(ctx context.Context, row models.ClientPrice, price decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ClientPrice{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]any{
			"custom_price": price,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
