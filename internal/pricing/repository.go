package pricing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
)

// Repository persists client price overrides.
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

// ListFilter narrows client price listings. Empty fields are ignored.
type ListFilter struct {
	UserID     string
	ProductID  *uuid.UUID
	ActiveOnly bool
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.ClientPrice, error) {
	query := r.db.WithContext(ctx).
		Joins("Product").
		Order("client_prices.created_at DESC").
		Order("client_prices.id DESC")
	if filter.UserID != "" {
		query = query.Where("client_prices.user_id = ?", filter.UserID)
	}
	if filter.ProductID != nil {
		query = query.Where("client_prices.product_id = ?", *filter.ProductID)
	}
	if filter.ActiveOnly {
		query = query.Where(`"Product".is_active = ?`, true)
	}

	var rows []models.ClientPrice
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ClientPrice, error) {
	var row models.ClientPrice
	if err := r.db.WithContext(ctx).Joins("Product").First(&row, "client_prices.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForUpdate loads the override for a (client, product) pair, locking it on Postgres.
func (r *Repository) FindForUpdate(ctx context.Context, userID string, productID uuid.UUID) (*models.ClientPrice, error) {
	var row models.ClientPrice
	err := r.lock(r.db.WithContext(ctx)).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListForUpdate loads every override a client has, locking them on Postgres.
func (r *Repository) ListForUpdate(ctx context.Context, userID string) ([]models.ClientPrice, error) {
	var rows []models.ClientPrice
	err := r.lock(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, row *models.ClientPrice) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// UpdateTerms writes new terms only if the row is still at expectedVersion and
// bumps the version. It reports false when another writer got there first.
func (r *Repository) UpdateTerms(ctx context.Context, id uuid.UUID, expectedVersion int, custom, discount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ClientPrice{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"custom_price":        custom,
			"discount_percentage": discount,
			"version":             gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ClientPrice{}).Error
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) lock(query *gorm.DB) *gorm.DB {
	if query.Dialector.Name() == "postgres" {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}
