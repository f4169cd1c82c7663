package registrations

import (
	"time"

	"github.com/google/uuid"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
)

type RequestDTO struct {
	ID              uuid.UUID                `json:"id"`
	Email           string                   `json:"email"`
	CompanyName     string                   `json:"company_name"`
	Phone           *string                  `json:"phone,omitempty"`
	Status          enums.RegistrationStatus `json:"status"`
	RejectionReason *string                  `json:"rejection_reason,omitempty"`
	ApprovedBy      *string                  `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time               `json:"approved_at,omitempty"`
	RejectedBy      *string                  `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time               `json:"rejected_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func FromModel(r *models.RegistrationRequest) *RequestDTO {
	if r == nil {
		return nil
	}
	return &RequestDTO{
		ID:              r.ID,
		Email:           r.Email,
		CompanyName:     r.CompanyName,
		Phone:           r.Phone,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		ApprovedBy:      r.ApprovedBy,
		ApprovedAt:      r.ApprovedAt,
		RejectedBy:      r.RejectedBy,
		RejectedAt:      r.RejectedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
