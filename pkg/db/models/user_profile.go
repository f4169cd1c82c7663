package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// UserProfile is the portal-side record of an identity-provider account. ID is
// the provider's uid.
type UserProfile struct {
	ID                    string              `gorm:"column:id;primaryKey"`
	Email                 string              `gorm:"column:email;not null;uniqueIndex"`
	CompanyName           string              `gorm:"column:company_name;not null"`
	ContactName           *string             `gorm:"column:contact_name"`
	Phone                 *string             `gorm:"column:phone"`
	Role                  enums.Role          `gorm:"column:role;type:text;not null;default:client"`
	Status                enums.AccountStatus `gorm:"column:status;type:text;not null;default:pending"`
	DiscountTier          decimal.Decimal     `gorm:"column:discount_tier;type:numeric(6,2);not null;default:0"`
	ApprovedBy            *string             `gorm:"column:approved_by"`
	ApprovedAt            *time.Time          `gorm:"column:approved_at"`
	RegistrationRequestID *uuid.UUID          `gorm:"column:registration_request_id;type:uuid"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
