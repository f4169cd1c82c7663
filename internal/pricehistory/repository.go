package pricehistory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
)

// Repository is append-only: rows are inserted and listed, never changed.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Filter narrows a history listing. Zero values are ignored.
type Filter struct {
	ProductID  *uuid.UUID
	UserID     *string
	ChangeType *enums.PriceChangeType
}

func (r *Repository) Insert(tx *gorm.DB, entry *models.PriceHistory) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(entry).Error
}

func (r *Repository) List(ctx context.Context, filter Filter, params pagination.Params, cursor *pagination.Cursor) ([]models.PriceHistory, error) {
	query := r.db.WithContext(ctx).Model(&models.PriceHistory{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ChangeType != nil {
		query = query.Where("change_type = ?", *filter.ChangeType)
	}

	var rows []models.PriceHistory
	if err := pagination.Apply(query, params, cursor).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
