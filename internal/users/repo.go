package users

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// Repository exposes user profile persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a profile by its identity-provider uid.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindForUpdate loads a profile and locks it on Postgres.
func (r *Repository) FindForUpdate(ctx context.Context, id string) (*models.UserProfile, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var profile models.UserProfile
	if err := query.First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByEmail retrieves the profile matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListClients returns client profiles newest first, optionally filtered by status.
func (r *Repository) ListClients(ctx context.Context, status *enums.AccountStatus) ([]models.UserProfile, error) {
	query := r.db.WithContext(ctx).
		Where("role = ?", enums.RoleClient).
		Order("created_at DESC").
		Order("id DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.UserProfile
	err := query.Find(&rows).Error
	return rows, err
}

// ListByStatus returns up to limit profiles in status, oldest update first.
func (r *Repository) ListByStatus(ctx context.Context, status enums.AccountStatus, limit int) ([]models.UserProfile, error) {
	var rows []models.UserProfile
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Upsert inserts the profile or refreshes an existing one with the same uid.
// Role, discount tier and creation time are never overwritten.
func (r *Repository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"company_name",
			"contact_name",
			"phone",
			"status",
			"approved_by",
			"approved_at",
			"registration_request_id",
			"updated_at",
		}),
	}).Create(profile).Error
}

// UpdateStatus sets the profile's status column.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status enums.AccountStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", id).
		Update("status", status).Error
}
