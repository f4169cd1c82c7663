package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClientPrice is a per-client override for one product. A zero CustomPrice or
// DiscountPercentage means that mode is unset; at most one is non-zero.
type ClientPrice struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID             string          `gorm:"column:user_id;not null"`
	ProductID          uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product            *Product        `gorm:"foreignKey:ProductID"`
	CustomPrice        decimal.Decimal `gorm:"column:custom_price;type:numeric(12,2);not null;default:0"`
	DiscountPercentage decimal.Decimal `gorm:"column:discount_percentage;type:numeric(6,2);not null;default:0"`
	Version            int             `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *ClientPrice) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}
