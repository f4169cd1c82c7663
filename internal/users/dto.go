package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// ProfileDTO is the transport shape of a user profile.
type ProfileDTO struct {
	ID                    string              `json:"id"`
	Email                 string              `json:"email"`
	CompanyName           string              `json:"company_name"`
	ContactName           *string             `json:"contact_name,omitempty"`
	Phone                 *string             `json:"phone,omitempty"`
	Role                  enums.Role          `json:"role"`
	Status                enums.AccountStatus `json:"status"`
	DiscountTier          decimal.Decimal     `json:"discount_tier"`
	ApprovedBy            *string             `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time          `json:"approved_at,omitempty"`
	RegistrationRequestID *uuid.UUID          `json:"registration_request_id,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func FromModel(p *models.UserProfile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:                    p.ID,
		Email:                 p.Email,
		CompanyName:           p.CompanyName,
		ContactName:           p.ContactName,
		Phone:                 p.Phone,
		Role:                  p.Role,
		Status:                p.Status,
		DiscountTier:          p.DiscountTier,
		ApprovedBy:            p.ApprovedBy,
		ApprovedAt:            p.ApprovedAt,
		RegistrationRequestID: p.RegistrationRequestID,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}
