// Package pricehistory keeps the audit trail of every price change.
package pricehistory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
)

// Entry describes one price change. UserID is nil for base price changes.
type Entry struct {
	ProductID  uuid.UUID
	UserID     *string
	OldPrice   decimal.Decimal
	NewPrice   decimal.Decimal
	ChangeType enums.PriceChangeType
	ActorID    string
	Reason     *string
}

// Recorder writes history rows inside the caller's transaction, so a failed
// write aborts the price mutation it describes.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

type recorder struct {
	repo *Repository
}

func NewRecorder(repo *Repository) (Recorder, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "price history repository required")
	}
	return &recorder{repo: repo}, nil
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "price history must be recorded in a transaction")
	}
	if entry.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !entry.ChangeType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid change type %q", entry.ChangeType)
	}
	actor := strings.TrimSpace(entry.ActorID)
	if actor == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}

	row := &models.PriceHistory{
		ProductID:  entry.ProductID,
		UserID:     entry.UserID,
		OldPrice:   entry.OldPrice.Round(2),
		NewPrice:   entry.NewPrice.Round(2),
		ChangeType: entry.ChangeType,
		ChangedBy:  actor,
		Reason:     trimmedOrNil(entry.Reason),
	}
	if err := r.repo.Insert(tx.WithContext(ctx), row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: record price history")
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
