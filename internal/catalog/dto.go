package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/types"
)

type CategoryDTO struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	Slug         string               `json:"slug"`
	Family       enums.CategoryFamily `json:"family"`
	DisplayOrder int                  `json:"display_order"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type ProductDTO struct {
	ID             uuid.UUID            `json:"id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	Description    *string              `json:"description,omitempty"`
	CategoryID     uuid.UUID            `json:"category_id"`
	Category       *CategoryDTO         `json:"category,omitempty"`
	BasePrice      decimal.Decimal      `json:"base_price_usd"`
	Currency       enums.Currency       `json:"currency"`
	IsActive       bool                 `json:"is_active"`
	Specifications types.Specifications `json:"specifications"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// ProductPage is one page of products in created_at DESC order.
type ProductPage struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toCategoryDTO(c models.ProductCategory) CategoryDTO {
	return CategoryDTO{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		Family:       c.Family,
		DisplayOrder: c.DisplayOrder,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toProductDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		CategoryID:     p.CategoryID,
		BasePrice:      p.BasePrice,
		Currency:       p.Currency,
		IsActive:       p.IsActive,
		Specifications: p.Specifications,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Category != nil {
		category := toCategoryDTO(*p.Category)
		dto.Category = &category
	}
	return dto
}
