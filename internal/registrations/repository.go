package registrations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// Repository persists registration requests.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, request *models.RegistrationRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RegistrationRequest, error) {
	var request models.RegistrationRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindForUpdate locks the request row on Postgres so two admins cannot decide
// the same request concurrently.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.RegistrationRequest, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var request models.RegistrationRequest
	if err := query.First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *Repository) FindPendingByEmail(ctx context.Context, email string) (*models.RegistrationRequest, error) {
	var request models.RegistrationRequest
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, enums.RegistrationStatusPending).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests newest first, optionally narrowed to one status.
func (r *Repository) List(ctx context.Context, status *enums.RegistrationStatus) ([]models.RegistrationRequest, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.RegistrationRequest
	err := query.Find(&rows).Error
	return rows, err
}

// Save writes the decision columns of a request.
func (r *Repository) Save(ctx context.Context, request *models.RegistrationRequest) error {
	return r.db.WithContext(ctx).
		Model(&models.RegistrationRequest{}).
		Where("id = ?", request.ID).
		Updates(map[string]any{
			"status":           request.Status,
			"rejection_reason": request.RejectionReason,
			"approved_by":      request.ApprovedBy,
			"approved_at":      request.ApprovedAt,
			"rejected_by":      request.RejectedBy,
			"rejected_at":      request.RejectedAt,
			"identity_uid":     request.IdentityUID,
			"updated_at":       request.UpdatedAt,
		}).Error
}
