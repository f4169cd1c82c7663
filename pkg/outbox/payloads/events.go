package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// PriceChangedEvent is emitted for every base or client price mutation.
// UserID is nil for base price changes.
type PriceChangedEvent struct {
	ProductID  uuid.UUID             `json:"product_id"`
	UserID     *string               `json:"user_id,omitempty"`
	ChangeType enums.PriceChangeType `json:"change_type"`
	OldPrice   decimal.Decimal       `json:"old_price"`
	NewPrice   decimal.Decimal       `json:"new_price"`
	ChangedBy  string                `json:"changed_by"`
}

// ClientPricesAdjustedEvent summarizes one bulk adjustment run.
type ClientPricesAdjustedEvent struct {
	UserID          string          `json:"user_id"`
	Percentage      decimal.Decimal `json:"percentage"`
	UpdatedCount    int             `json:"updated_count"`
	SkippedProducts []uuid.UUID     `json:"skipped_products"`
	AdjustedBy      string          `json:"adjusted_by"`
}

// RegistrationDecidedEvent is emitted when an admin approves or rejects a request.
type RegistrationDecidedEvent struct {
	RequestID   uuid.UUID                `json:"request_id"`
	Email       string                   `json:"email"`
	CompanyName string                   `json:"company_name"`
	Status      enums.RegistrationStatus `json:"status"`
	UserID      *string                  `json:"user_id,omitempty"`
	Reason      *string                  `json:"reason,omitempty"`
	DecidedBy   string                   `json:"decided_by"`
}

// AccountStatusChangedEvent covers suspension, reactivation and pre-authorization.
type AccountStatusChangedEvent struct {
	UserID    string              `json:"user_id"`
	Email     string              `json:"email"`
	Status    enums.AccountStatus `json:"status"`
	ChangedBy string              `json:"changed_by"`
}
