package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// RegistrationRequest is a prospective client's signup awaiting admin review.
type RegistrationRequest struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Email           string                   `gorm:"column:email;not null"`
	CompanyName     string                   `gorm:"column:company_name;not null"`
	Phone           *string                  `gorm:"column:phone"`
	Status          enums.RegistrationStatus `gorm:"column:status;type:text;not null;default:pending"`
	RejectionReason *string                  `gorm:"column:rejection_reason"`
	ApprovedBy      *string                  `gorm:"column:approved_by"`
	ApprovedAt      *time.Time               `gorm:"column:approved_at"`
	RejectedBy      *string                  `gorm:"column:rejected_by"`
	RejectedAt      *time.Time               `gorm:"column:rejected_at"`
	IdentityUID     *string                  `gorm:"column:identity_uid"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *RegistrationRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = enums.RegistrationStatusPending
	}
	return nil
}
