package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/types"
)

// Product is a catalog entry. Products are deactivated, never deleted.
type Product struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Code           string               `gorm:"column:code;not null;uniqueIndex"`
	Name           string               `gorm:"column:name;not null"`
	Description    *string              `gorm:"column:description"`
	CategoryID     uuid.UUID            `gorm:"column:category_id;type:uuid;not null"`
	Category       *ProductCategory     `gorm:"foreignKey:CategoryID"`
	BasePrice      decimal.Decimal      `gorm:"column:base_price;type:numeric(12,2);not null"`
	Currency       enums.Currency       `gorm:"column:currency;type:text;not null;default:USD"`
	IsActive       bool                 `gorm:"column:is_active;not null;default:true"`
	Specifications types.Specifications `gorm:"column:specifications;type:jsonb"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = enums.CurrencyUSD
	}
	return nil
}
