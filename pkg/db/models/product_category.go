package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// ProductCategory groups catalog products for browsing.
type ProductCategory struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name         string               `gorm:"column:name;not null"`
	Slug         string               `gorm:"column:slug;not null;uniqueIndex"`
	Family       enums.CategoryFamily `gorm:"column:family;type:text;not null"`
	DisplayOrder int                  `gorm:"column:display_order;not null;default:0"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductCategory) TableName() string { return "product_categories" }

func (c *ProductCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
