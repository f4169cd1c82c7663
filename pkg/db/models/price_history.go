package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// PriceHistory is an append-only audit row. UserID is nil for base price changes.
type PriceHistory struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	UserID     *string               `gorm:"column:user_id"`
	OldPrice   decimal.Decimal       `gorm:"column:old_price;type:numeric(12,2);not null"`
	NewPrice   decimal.Decimal       `gorm:"column:new_price;type:numeric(12,2);not null"`
	ChangeType enums.PriceChangeType `gorm:"column:change_type;type:text;not null"`
	ChangedBy  string                `gorm:"column:changed_by;not null"`
	Reason     *string               `gorm:"column:reason"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (PriceHistory) TableName() string { return "price_history" }

func (h *PriceHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
